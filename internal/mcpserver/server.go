package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"moonpulse/internal/domain"
	"moonpulse/internal/provider"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	ToolAsk           = "ask"
	ToolUpstreamTools = "upstream_tools"
)

// Asker answers one free-text query.
type Asker interface {
	Ask(ctx context.Context, text string) domain.FinalResponse
}

// CatalogSource yields the advertised upstream tools.
type CatalogSource interface {
	Catalog(ctx context.Context) (*provider.Catalog, error)
}

type AskInput struct {
	Question string `json:"question" jsonschema:"free-text question about crypto alerts, project summaries or social trends"`
}

type Server struct {
	tracer  trace.Tracer
	asker   Asker
	catalog CatalogSource
	version string
	timeout time.Duration
}

// New exposes asker as MCP tools; catalog may be nil.
func New(tracer trace.Tracer, asker Asker, catalog CatalogSource, version string, timeout time.Duration) *Server {
	return &Server{
		tracer:  tracer,
		asker:   asker,
		catalog: catalog,
		version: version,
		timeout: timeout,
	}
}

// MCP builds a fresh protocol server with every tool registered.
func (s *Server) MCP() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "moonpulse", Version: s.version}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolAsk,
		Description: "Answer a question about crypto market and social activity: today's top alerts, a project summary for a 0x contract address, or a narrative of an asset's social trend.",
	}, s.ask)
	if s.catalog != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        ToolUpstreamTools,
			Description: "List the upstream data tools advertised by the tool manifest.",
		}, s.upstreamTools)
	}
	return server
}

func (s *Server) RunStdio(ctx context.Context) error {
	return s.MCP().Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler serves the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	server := s.MCP()
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

func (s *Server) ask(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, any, error) {
	ctx, span := s.tracer.Start(ctx, "mcp.ask")
	defer span.End()

	question := strings.TrimSpace(in.Question)
	if question == "" {
		return errorResult("question is required"), nil, nil
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp := s.asker.Ask(ctx, question)
	span.SetAttributes(
		attribute.String("intent", string(resp.Intent)),
		attribute.Bool("failed", resp.Failed()),
	)

	body, err := json.Marshal(resp)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
		IsError: resp.Failed(),
	}, nil, nil
}

func (s *Server) upstreamTools(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	ctx, span := s.tracer.Start(ctx, "mcp.upstream-tools")
	defer span.End()

	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		span.RecordError(err)
		return errorResult(err.Error()), nil, nil
	}
	body, err := json.Marshal(catalog.Tools())
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}, nil, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}
