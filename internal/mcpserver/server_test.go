package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"moonpulse/internal/domain"
	"moonpulse/internal/provider"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/trace"
)

type stubAsker struct {
	text     string
	deadline bool
	resp     domain.FinalResponse
}

func (s *stubAsker) Ask(ctx context.Context, text string) domain.FinalResponse {
	s.text = text
	_, s.deadline = ctx.Deadline()
	resp := s.resp
	resp.Query = text
	return resp
}

type stubCatalog struct {
	catalog *provider.Catalog
	err     error
}

func (s *stubCatalog) Catalog(ctx context.Context) (*provider.Catalog, error) {
	return s.catalog, s.err
}

func newTestServer(asker Asker, catalog CatalogSource) *Server {
	return New(trace.NewNoopTracerProvider().Tracer("test"), asker, catalog, "test", time.Second)
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %+v", res)
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return tc.Text
}

func TestAskToolReturnsEnvelope(t *testing.T) {
	asker := &stubAsker{resp: domain.FinalResponse{Intent: domain.IntentSocialTrend, Result: "SOL attention is climbing."}}
	s := newTestServer(asker, nil)

	res, _, err := s.ask(context.Background(), nil, AskInput{Question: "  SOL trend  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatal("expected success result")
	}
	if asker.text != "SOL trend" || !asker.deadline {
		t.Fatalf("expected trimmed question with deadline, got %q / %v", asker.text, asker.deadline)
	}

	var got domain.FinalResponse
	if err := json.Unmarshal([]byte(textOf(t, res)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Query != "SOL trend" || got.Result != "SOL attention is climbing." {
		t.Fatalf("unexpected envelope %+v", got)
	}
}

func TestAskToolMarksFailures(t *testing.T) {
	asker := &stubAsker{resp: domain.FinalResponse{
		Intent: domain.IntentAlerts,
		Error:  &domain.ErrorBody{Kind: "upstream", Message: "status 503", UpstreamStatus: 503},
	}}
	res, _, err := newTestServer(asker, nil).ask(context.Background(), nil, AskInput{Question: "alerts"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(textOf(t, res), `"upstream_status":503`) {
		t.Fatalf("expected upstream status in body, got %s", textOf(t, res))
	}
}

func TestAskToolRequiresQuestion(t *testing.T) {
	asker := &stubAsker{}
	res, _, err := newTestServer(asker, nil).ask(context.Background(), nil, AskInput{Question: " "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError || asker.text != "" {
		t.Fatal("expected validation error without calling the pipeline")
	}
}

func TestUpstreamToolsTool(t *testing.T) {
	catalog := provider.NewCatalog(domain.ToolManifest{
		Name:  "trendmoon",
		Tools: []domain.Tool{{Name: "trendmoon_get_social_trend"}, {Name: "trendmoon_get_top_alerts_today"}},
	})
	s := newTestServer(&stubAsker{}, &stubCatalog{catalog: catalog})

	res, _, err := s.upstreamTools(context.Background(), nil, struct{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var tools []domain.Tool
	if err := json.Unmarshal([]byte(textOf(t, res)), &tools); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tools) != 2 || tools[0].Name != "trendmoon_get_social_trend" {
		t.Fatalf("unexpected tools %+v", tools)
	}
}

func TestUpstreamToolsCatalogError(t *testing.T) {
	s := newTestServer(&stubAsker{}, &stubCatalog{err: errors.New("manifest unreachable")})
	res, _, err := s.upstreamTools(context.Background(), nil, struct{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError || textOf(t, res) != "manifest unreachable" {
		t.Fatalf("expected error result, got %+v", res)
	}
}

func TestBuildServers(t *testing.T) {
	s := newTestServer(&stubAsker{}, nil)
	if s.MCP() == nil {
		t.Fatal("expected mcp server")
	}
	if s.HTTPHandler() == nil {
		t.Fatal("expected http handler")
	}
}
