package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"moonpulse/internal/domain"
	"moonpulse/internal/provider"
	"moonpulse/internal/response"
	"moonpulse/internal/router"

	"go.opentelemetry.io/otel/trace"
)

const trendSeries = `{"data":[
	{"date":"2024-01-01","price":100,"social_mentions":1200,"sentiment":55},
	{"date":"2024-01-02","price":110,"social_mentions":1500,"sentiment":62},
	{"date":"2024-01-03","price":90,"social_mentions":2100,"sentiment":48}
]}`

const contract = "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984"

func newTestService(f *stubFetcher, n *stubNarrator, extra func(*Deps)) *Service {
	deps := Deps{Fetcher: f, Narrator: n}
	if extra != nil {
		extra(&deps)
	}
	return NewService(trace.NewNoopTracerProvider().Tracer("test"), deps)
}

func TestAskSocialTrend(t *testing.T) {
	f := &stubFetcher{payload: json.RawMessage(trendSeries)}
	n := &stubNarrator{reply: "BTC chatter rose while price slipped."}
	svc := newTestService(f, n, nil)

	resp := svc.Ask(context.Background(), "show the bitcoin social trend over 14 days")
	if resp.Failed() {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if resp.Intent != domain.IntentSocialTrend {
		t.Fatalf("expected social_trend, got %s", resp.Intent)
	}
	if resp.Result != "BTC chatter rose while price slipped." {
		t.Fatalf("unexpected result %#v", resp.Result)
	}

	spec := f.last()
	if spec.Tool != router.ToolSocialTrend {
		t.Fatalf("expected social trend tool, got %s", spec.Tool)
	}
	if spec.Params.Get("symbol") != "BTC" || spec.Params.Get("date_interval") != "14" {
		t.Fatalf("unexpected params %v", spec.Params)
	}

	prompt := n.req.Prompt()
	if regexp.MustCompile(`\d{4}-\d{2}-\d{2}`).MatchString(prompt) {
		t.Fatal("prompt must not carry series dates")
	}
	if !strings.Contains(prompt, "social_mentions") || n.req.Symbol != "BTC" {
		t.Fatalf("expected analyzed metrics in prompt, got:\n%s", prompt)
	}
}

func TestAskAlertsPassThrough(t *testing.T) {
	payload := json.RawMessage(`[{"symbol":"PEPE","score":9.1}]`)
	f := &stubFetcher{payload: payload}
	n := &stubNarrator{}
	svc := newTestService(f, n, nil)

	resp := svc.Ask(context.Background(), "any alerts on the BTC trend today?")
	if resp.Intent != domain.IntentAlerts {
		t.Fatalf("expected alerts, got %s", resp.Intent)
	}
	if got, ok := resp.Result.(json.RawMessage); !ok || string(got) != string(payload) {
		t.Fatalf("expected raw payload, got %#v", resp.Result)
	}
	if n.calls != 0 {
		t.Fatal("alerts must not be narrated")
	}
}

func TestAskProjectSummary(t *testing.T) {
	f := &stubFetcher{payload: json.RawMessage(`{"summary":"Uniswap governance token"}`)}
	svc := newTestService(f, &stubNarrator{}, nil)

	resp := svc.Ask(context.Background(), "what is the price trend of "+contract)
	if resp.Intent != domain.IntentProjectSummary {
		t.Fatalf("expected project_summary, got %s", resp.Intent)
	}
	spec := f.last()
	if spec.Params.Get("contract_address") != contract || spec.Params.Get("days_ago") != "7" {
		t.Fatalf("unexpected params %v", spec.Params)
	}
}

func TestAskProjectSummaryWithoutAddress(t *testing.T) {
	f := &stubFetcher{}
	svc := newTestService(f, &stubNarrator{}, nil)

	resp := svc.Ask(context.Background(), "give me a project summary")
	if resp.Intent != domain.IntentProjectSummary || resp.Result != response.MissingAddress {
		t.Fatalf("expected address clarification, got %+v", resp)
	}
	if len(f.specs) != 0 {
		t.Fatal("no upstream call expected")
	}
}

func TestAskUnresolved(t *testing.T) {
	f := &stubFetcher{}
	svc := newTestService(f, &stubNarrator{}, nil)

	resp := svc.Ask(context.Background(), "hello, who are you?")
	if resp.Intent != domain.IntentUnresolved || resp.Result != response.Clarification {
		t.Fatalf("expected clarification, got %+v", resp)
	}
	if resp.Query != "hello, who are you?" {
		t.Fatalf("query must be echoed, got %q", resp.Query)
	}
	if len(f.specs) != 0 {
		t.Fatal("no upstream call expected")
	}
}

func TestAskNoData(t *testing.T) {
	for _, payload := range []string{`[]`, `{"message":"unknown symbol"}`} {
		svc := newTestService(&stubFetcher{payload: json.RawMessage(payload)}, &stubNarrator{}, nil)
		resp := svc.Ask(context.Background(), "ETH trend")
		if resp.Failed() {
			t.Fatalf("payload %s: no data must not be an error, got %+v", payload, resp.Error)
		}
		if resp.Result != response.NoData {
			t.Fatalf("payload %s: expected no data message, got %#v", payload, resp.Result)
		}
	}
}

func TestAskUpstreamError(t *testing.T) {
	f := &stubFetcher{err: &domain.UpstreamError{Tool: router.ToolTopAlerts, Status: 503, Body: "down"}}
	svc := newTestService(f, &stubNarrator{}, nil)

	resp := svc.Ask(context.Background(), "top alerts")
	if !resp.Failed() || resp.Error.Kind != response.KindUpstream || resp.Error.UpstreamStatus != 503 {
		t.Fatalf("expected upstream error envelope, got %+v", resp)
	}
}

func TestAskNarratorError(t *testing.T) {
	f := &stubFetcher{payload: json.RawMessage(trendSeries)}
	svc := newTestService(f, &stubNarrator{err: errors.New("quota exceeded")}, nil)

	resp := svc.Ask(context.Background(), "SOL trend")
	if !resp.Failed() || resp.Error.Kind != response.KindInternal {
		t.Fatalf("expected internal error, got %+v", resp)
	}
}

func TestAskCatalogMustAdvertiseTool(t *testing.T) {
	f := &stubFetcher{payload: json.RawMessage(`[]`)}
	catalog := &stubCatalog{catalog: provider.NewCatalog(domain.ToolManifest{
		Name:  "trendmoon",
		Tools: []domain.Tool{{Name: router.ToolSocialTrend}},
	})}
	svc := newTestService(f, &stubNarrator{}, func(d *Deps) {
		d.Catalog = catalog
		d.RequireAdvertised = true
	})

	resp := svc.Ask(context.Background(), "top alerts today")
	if !resp.Failed() || resp.Error.Kind != response.KindConfiguration {
		t.Fatalf("expected configuration error, got %+v", resp)
	}
	if len(f.specs) != 0 {
		t.Fatal("no upstream call expected for an unadvertised tool")
	}
}

func TestAskProjectSummaryWithTwoToolManifest(t *testing.T) {
	m, err := provider.ParseManifest([]byte(`{
		"name": "Mock MCP Server",
		"version": "1.0.0",
		"tools": [
			{"name": "trendmoon_get_social_trend", "description": "social trend", "parameters": {"type": "object", "properties": {}, "required": []}},
			{"name": "trendmoon_get_top_alerts_today", "description": "alerts", "parameters": {"type": "object", "properties": {}, "required": []}}
		]
	}`))
	if err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	f := &stubFetcher{payload: json.RawMessage(`{"summary":"Uniswap governance token"}`)}
	svc := newTestService(f, &stubNarrator{}, func(d *Deps) {
		d.Catalog = &stubCatalog{catalog: provider.NewCatalog(m)}
	})

	resp := svc.Ask(context.Background(), "project summary for "+contract)
	if resp.Failed() || resp.Intent != domain.IntentProjectSummary {
		t.Fatalf("expected project summary answer, got %+v", resp)
	}
	if len(f.specs) != 1 || f.last().Tool != router.ToolProjectSummary {
		t.Fatalf("expected one project summary fetch, got %+v", f.specs)
	}
}

func TestAskCatalogLoadFailure(t *testing.T) {
	catalog := &stubCatalog{err: domain.ConfigError("tool manifest is missing a tools array")}
	svc := newTestService(&stubFetcher{}, &stubNarrator{}, func(d *Deps) { d.Catalog = catalog })

	resp := svc.Ask(context.Background(), "top alerts today")
	if !resp.Failed() || resp.Error.Kind != response.KindConfiguration {
		t.Fatalf("expected configuration error, got %+v", resp)
	}
}

func TestAskCredentialFailure(t *testing.T) {
	f := &stubFetcher{}
	guard := &stubGuard{err: domain.ConfigError("trendmoon rejected the API key (status 401)")}
	svc := newTestService(f, &stubNarrator{}, func(d *Deps) { d.Credentials = guard })

	resp := svc.Ask(context.Background(), "top alerts")
	if !resp.Failed() || resp.Error.Kind != response.KindConfiguration {
		t.Fatalf("expected configuration error, got %+v", resp)
	}
	if len(f.specs) != 0 {
		t.Fatal("no upstream call expected after failed credential check")
	}
}

func TestAskRecoversFromPanic(t *testing.T) {
	svc := newTestService(&stubFetcher{panics: true}, &stubNarrator{}, nil)

	resp := svc.Ask(context.Background(), "top alerts")
	if !resp.Failed() || resp.Error.Kind != response.KindInternal || resp.Intent != domain.IntentAlerts {
		t.Fatalf("expected internal error envelope, got %+v", resp)
	}
}

func TestAskWithoutFetcher(t *testing.T) {
	svc := NewService(trace.NewNoopTracerProvider().Tracer("test"), Deps{})
	resp := svc.Ask(context.Background(), "top alerts")
	if !resp.Failed() || resp.Error.Kind != response.KindConfiguration {
		t.Fatalf("expected configuration error, got %+v", resp)
	}
}

func TestAskConcurrentRequestsIsolated(t *testing.T) {
	f := &stubFetcher{payload: json.RawMessage(trendSeries)}
	n := &stubNarrator{echoSymbol: true}
	svc := newTestService(f, n, nil)

	queries := map[string]string{
		"BTC trend":      "BTC",
		"ethereum trend": "ETH",
		"solana trend":   "SOL",
		"dogecoin trend": "DOGE",
	}
	var wg sync.WaitGroup
	for q, want := range queries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				resp := svc.Ask(context.Background(), q)
				if resp.Query != q || resp.Result != want {
					t.Errorf("query %q: got %+v", q, resp)
					return
				}
			}
		}()
	}
	wg.Wait()
}

// --- stubs ---

type stubFetcher struct {
	mu      sync.Mutex
	payload json.RawMessage
	err     error
	panics  bool
	specs   []domain.RequestSpec
}

func (s *stubFetcher) Fetch(ctx context.Context, spec domain.RequestSpec) (json.RawMessage, error) {
	if s.panics {
		panic("nil map write")
	}
	s.mu.Lock()
	s.specs = append(s.specs, spec)
	s.mu.Unlock()
	return s.payload, s.err
}

func (s *stubFetcher) last() domain.RequestSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.specs[len(s.specs)-1]
}

type stubNarrator struct {
	mu         sync.Mutex
	reply      string
	err        error
	echoSymbol bool
	calls      int
	req        domain.SummaryRequest
}

func (s *stubNarrator) Narrate(ctx context.Context, req domain.SummaryRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.req = req
	if s.echoSymbol {
		return req.Symbol, nil
	}
	return s.reply, s.err
}

type stubCatalog struct {
	catalog *provider.Catalog
	err     error
}

func (s *stubCatalog) Catalog(ctx context.Context) (*provider.Catalog, error) {
	return s.catalog, s.err
}

type stubGuard struct {
	err error
}

func (s *stubGuard) Check(ctx context.Context) error {
	return s.err
}
