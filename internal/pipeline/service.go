package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"moonpulse/internal/analysis"
	"moonpulse/internal/domain"
	"moonpulse/internal/extract"
	"moonpulse/internal/intent"
	"moonpulse/internal/provider"
	"moonpulse/internal/response"
	"moonpulse/internal/router"
	"moonpulse/internal/summary"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Fetcher performs the upstream call described by a RequestSpec.
type Fetcher interface {
	Fetch(ctx context.Context, spec domain.RequestSpec) (json.RawMessage, error)
}

// CatalogSource yields the tools the upstream manifest advertises.
type CatalogSource interface {
	Catalog(ctx context.Context) (*provider.Catalog, error)
}

// CredentialChecker is a precondition run before any upstream call.
type CredentialChecker interface {
	Check(ctx context.Context) error
}

// SeriesAnalyzer computes windowed statistics for a decoded series.
type SeriesAnalyzer interface {
	Analyze(ctx context.Context, symbol string, lookbackDays int, series []domain.TimeSeriesPoint, windows []domain.Window) (domain.AnalysisResult, error)
}

// Deps lists the collaborators of a Service. Catalog and Credentials are
// optional; when nil the corresponding check is skipped. With a Catalog the
// manifest must load; RequireAdvertised additionally rejects routed tools the
// manifest does not list.
type Deps struct {
	Extractor   *extract.Extractor
	Classifier  *intent.Classifier
	Router      *router.Router
	Fetcher     Fetcher
	Catalog     CatalogSource
	Credentials CredentialChecker
	Analyzer    SeriesAnalyzer
	Narrator    summary.Narrator
	Windows     []domain.Window

	RequireAdvertised bool
}

// Service runs one query end to end. It holds no per-request state.
type Service struct {
	tracer      trace.Tracer
	extractor   *extract.Extractor
	classifier  *intent.Classifier
	router      *router.Router
	fetcher     Fetcher
	catalog     CatalogSource
	credentials CredentialChecker
	analyzer    SeriesAnalyzer
	narrator    summary.Narrator
	windows     []domain.Window
	strict      bool
}

func NewService(tracer trace.Tracer, deps Deps) *Service {
	s := &Service{
		tracer:      tracer,
		extractor:   deps.Extractor,
		classifier:  deps.Classifier,
		router:      deps.Router,
		fetcher:     deps.Fetcher,
		catalog:     deps.Catalog,
		credentials: deps.Credentials,
		analyzer:    deps.Analyzer,
		narrator:    deps.Narrator,
		windows:     deps.Windows,
		strict:      deps.RequireAdvertised,
	}
	if s.extractor == nil {
		s.extractor = extract.NewExtractor(nil, domain.DefaultLookbackDays)
	}
	if s.classifier == nil {
		s.classifier = intent.NewClassifier(intent.DefaultRules(s.extractor.Symbols())...)
	}
	if s.router == nil {
		s.router = router.New(router.DefaultPaths())
	}
	if s.analyzer == nil {
		s.analyzer = analysis.NewAnalyzer(tracer)
	}
	if len(s.windows) == 0 {
		s.windows = domain.DefaultWindows
	}
	return s
}

// Ask answers one free-text query. Every outcome, including failures and
// panics in collaborators, comes back as a FinalResponse.
func (s *Service) Ask(ctx context.Context, text string) (resp domain.FinalResponse) {
	ctx, span := s.tracer.Start(ctx, "pipeline.ask")
	defer span.End()

	in := domain.IntentUnresolved
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("internal error: %v", r)
			log.Printf("pipeline panic for %q: %v", text, r)
			span.RecordError(err)
			resp = response.Failure(text, in, err)
		}
	}()

	entities := s.extractor.Extract(text)
	in = s.classifier.Classify(text, entities)
	span.SetAttributes(
		attribute.String("intent", string(in)),
		attribute.String("symbol", entities.Symbol),
		attribute.Int("lookback_days", entities.LookbackDays),
	)

	spec, ok := s.router.Route(in, entities)
	if !ok {
		if in == domain.IntentProjectSummary {
			return response.Format(text, in, response.MissingAddress)
		}
		return response.Format(text, domain.IntentUnresolved, nil)
	}
	span.SetAttributes(attribute.String("tool", spec.Tool))

	content, err := s.run(ctx, text, in, entities, spec)
	if err != nil {
		if !domain.IsNoData(err) {
			log.Printf("ask failed: intent=%s tool=%s: %v", in, spec.Tool, err)
			span.RecordError(err)
		}
		return response.Failure(text, in, err)
	}
	return response.Format(text, in, content)
}

func (s *Service) run(ctx context.Context, text string, in domain.Intent, e domain.Entities, spec domain.RequestSpec) (any, error) {
	if err := s.preconditions(ctx, spec); err != nil {
		return nil, err
	}
	if s.fetcher == nil {
		return nil, domain.ConfigError("no upstream client configured")
	}

	raw, err := s.fetcher.Fetch(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", spec.Tool, err)
	}
	if in != domain.IntentSocialTrend {
		return raw, nil
	}
	return s.narrate(ctx, text, e, raw)
}

func (s *Service) preconditions(ctx context.Context, spec domain.RequestSpec) error {
	if s.catalog != nil {
		catalog, err := s.catalog.Catalog(ctx)
		if err != nil {
			return fmt.Errorf("load tool manifest: %w", err)
		}
		if s.strict {
			if err := catalog.Require(spec.Tool); err != nil {
				return err
			}
		}
	}
	if s.credentials != nil {
		if err := s.credentials.Check(ctx); err != nil {
			return fmt.Errorf("credential check: %w", err)
		}
	}
	return nil
}

func (s *Service) narrate(ctx context.Context, text string, e domain.Entities, raw json.RawMessage) (string, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.social-trend")
	defer span.End()

	series, err := analysis.DecodeSeries(raw)
	if err != nil {
		return "", err
	}
	result, err := s.analyzer.Analyze(ctx, e.Symbol, e.LookbackDays, series, s.windows)
	if err != nil {
		return "", err
	}
	if s.narrator == nil {
		return "", domain.ConfigError("no narrative generator configured")
	}

	req := summary.Assemble(text, e.Symbol, result)
	return s.narrator.Narrate(ctx, req)
}
