package summary

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"moonpulse/internal/domain"

	"github.com/openai/openai-go"
	"go.opentelemetry.io/otel/trace"
)

var dateLike = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

func sampleAnalysis() domain.AnalysisResult {
	vol := 8.16496580927726
	return domain.AnalysisResult{
		Symbol:       "BTC",
		LookbackDays: 3,
		Windows: []domain.WindowStats{
			{
				Window:     domain.Window{Label: "1d", Days: 1},
				Start:      time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
				End:        time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
				PointCount: 1,
				Metrics: map[string]domain.MetricStats{
					"price": {Min: 90, Max: 90, Avg: 90, Status: domain.StatusInsufficient},
				},
			},
			{
				Window:     domain.Window{Label: "3d", Days: 3},
				Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				End:        time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
				PointCount: 3,
				Metrics: map[string]domain.MetricStats{
					"price": {
						Min: 90, Max: 110, Avg: 100,
						Trend:      &domain.Trend{Direction: domain.TrendDown, Slope: -5, ChangePct: -10},
						Volatility: &vol,
						Status:     domain.StatusOK,
					},
					"social_dominance": {
						Min: 0.05, Max: 0.2, Avg: 0.12,
						Trend:      &domain.Trend{Direction: domain.TrendUp, Slope: 0.075, ChangePct: 125},
						Volatility: &vol,
						Status:     domain.StatusOK,
					},
				},
			},
		},
	}
}

func TestAssembleOmitsDates(t *testing.T) {
	req := Assemble("show the social trend for BTC over 3 days", "BTC", sampleAnalysis())
	prompt := req.Prompt()
	if m := dateLike.FindString(prompt); m != "" {
		t.Fatalf("prompt must not contain dates, found %q", m)
	}
	if strings.Contains(prompt, "2024") {
		t.Fatal("prompt must not contain the series year")
	}
}

func TestAssembleCarriesStatistics(t *testing.T) {
	req := Assemble("how is BTC doing", "BTC", sampleAnalysis())
	if req.OriginalQuery != "how is BTC doing" || req.Symbol != "BTC" {
		t.Fatalf("unexpected request context %+v", req)
	}
	for _, want := range []string{
		"Window 3d (3 points)",
		"price: min 90, max 110, avg 100, trend down (-10.0%)",
		"social_dominance: min 0.05, max 0.2, avg 0.12, trend up (+125.0%)",
		"Window 1d (1 points)",
		"trend insufficient data",
	} {
		if !strings.Contains(req.AnalyzedData, want) {
			t.Fatalf("expected %q in analyzed data:\n%s", want, req.AnalyzedData)
		}
	}
}

func TestPromptInstructions(t *testing.T) {
	prompt := Assemble("q", "ETH", sampleAnalysis()).Prompt()
	for _, want := range []string{
		"single, concise summary paragraph",
		"Temporal patterns",
		"Correlation",
		"Sentiment shifts",
		"Divergences",
		"Anomalies",
		"Galaxy Score",
		"Social dominance above 0.1%",
		"Sentiment scores above 60",
		"Do not use lists, bullet points",
		"Examples of acceptable output",
		"User question: q",
		"Asset: ETH",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected %q in prompt", want)
		}
	}
}

func TestAssembleDoesNotShareSlices(t *testing.T) {
	a := Assemble("q", "ETH", domain.AnalysisResult{})
	a.Examples[0] = "mutated"
	b := Assemble("q", "ETH", domain.AnalysisResult{})
	if b.Examples[0] == "mutated" {
		t.Fatal("expected independent example slices per request")
	}
}

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{
		100:       "100",
		0.123456:  "0.1235",
		123.456:   "123.5",
		1234567.8: "1234568",
		-2500:     "-2500",
	}
	for in, want := range cases {
		if got := formatNumber(in); got != want {
			t.Fatalf("formatNumber(%v): expected %q, got %q", in, want, got)
		}
	}
}

func TestNarrateHappyPath(t *testing.T) {
	llm := &stubLLMClient{
		response: &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "BTC attention is cooling."}},
			},
		},
	}
	n := NewOpenAINarrator(trace.NewNoopTracerProvider().Tracer("test"), llm, "", DefaultTemperature)

	reply, err := n.Narrate(context.Background(), Assemble("q", "BTC", sampleAnalysis()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "BTC attention is cooling." {
		t.Fatalf("unexpected reply %q", reply)
	}
	if llm.params.Model != DefaultModel {
		t.Fatalf("expected default model %s, got %s", DefaultModel, llm.params.Model)
	}
	if len(llm.params.Messages) != 1 || llm.params.Messages[0].OfUser == nil {
		t.Fatalf("expected a single user message, got %d messages", len(llm.params.Messages))
	}
}

func TestNarrateLLMError(t *testing.T) {
	n := NewOpenAINarrator(trace.NewNoopTracerProvider().Tracer("test"),
		&stubLLMClient{err: errors.New("api down")}, "gpt-4o", 1)
	if _, err := n.Narrate(context.Background(), domain.SummaryRequest{}); err == nil {
		t.Fatal("expected error from LLM failure")
	}
}

func TestNarrateNoChoices(t *testing.T) {
	n := NewOpenAINarrator(trace.NewNoopTracerProvider().Tracer("test"),
		&stubLLMClient{response: &openai.ChatCompletion{}}, "gpt-4o", 1)
	if _, err := n.Narrate(context.Background(), domain.SummaryRequest{}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNarrateWithoutClientIsConfigurationError(t *testing.T) {
	n := NewOpenAINarrator(trace.NewNoopTracerProvider().Tracer("test"), nil, "gpt-4o", 1)
	_, err := n.Narrate(context.Background(), domain.SummaryRequest{})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

type stubLLMClient struct {
	response *openai.ChatCompletion
	err      error
	params   openai.ChatCompletionNewParams
}

func (s *stubLLMClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	s.params = params
	return s.response, s.err
}
