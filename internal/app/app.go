package app

import (
	"context"
	"log"
	"time"

	"moonpulse/internal/cache"
	"moonpulse/internal/config"
	"moonpulse/internal/credentials"
	"moonpulse/internal/extract"
	"moonpulse/internal/intent"
	"moonpulse/internal/job"
	"moonpulse/internal/pipeline"
	"moonpulse/internal/provider"
	"moonpulse/internal/router"
	"moonpulse/internal/summary"

	"go.opentelemetry.io/otel/trace"
)

const ServiceName = "moonpulse"

// Version is stamped at build time with -ldflags "-X moonpulse/internal/app.Version=...".
var Version = "dev"

const warmupTimeout = 10 * time.Second

// CatalogSource yields the advertised upstream tools.
type CatalogSource interface {
	Catalog(ctx context.Context) (*provider.Catalog, error)
}

// App holds the wired collaborators shared by every front door.
type App struct {
	Service  *pipeline.Service
	Client   *provider.TrendmoonClient
	Manifest *provider.ManifestSource
	Guard    *credentials.Guard

	tracer trace.Tracer
}

var (
	newCacheFunc     = cache.New
	newLLMClientFunc = summary.NewOpenAIClient
)

func Build(ctx context.Context, cfg *config.Config, tracer trace.Tracer) *App {
	a := &App{tracer: tracer}

	a.Client = provider.NewTrendmoonClient(
		tracer,
		cfg.TrendmoonBaseURL,
		cfg.TrendmoonAPIKey,
		cfg.TrendmoonTimeout(),
		cfg.TrendmoonRateLimitMin,
	)

	if cfg.ToolManifestEnabled {
		a.Manifest = provider.NewManifestSource(tracer, cfg.ToolManifestURL)
	}

	if cfg.CredentialCheckEnabled {
		a.Guard = credentials.NewGuard(tracer, a.Client, newCacheFunc(ctx, cfg.RedisURL), cfg.CredentialCheckTTL(), true)
	}

	var llm summary.LLMClient
	if cfg.OpenAIAPIKey != "" {
		llm = newLLMClientFunc(cfg.OpenAIAPIKey)
	}
	narrator := summary.NewOpenAINarrator(tracer, llm, cfg.OpenAIModel, cfg.OpenAITemperature)

	extractor := extract.NewExtractor(extract.DefaultSymbolTable(), cfg.DefaultLookbackDays)
	deps := pipeline.Deps{
		Extractor:  extractor,
		Classifier: intent.NewClassifier(intent.DefaultRules(extractor.Symbols())...),
		Router:     router.New(router.DefaultPaths()),
		Fetcher:    a.Client,
		Narrator:   narrator,
		Windows:    cfg.AnalysisWindows,
	}
	if a.Manifest != nil {
		deps.Catalog = a.Manifest
		deps.RequireAdvertised = cfg.ToolManifestStrict
	}
	if a.Guard != nil {
		deps.Credentials = a.Guard
	}
	a.Service = pipeline.NewService(tracer, deps)
	return a
}

// Catalog returns a nil interface when the manifest is disabled.
func (a *App) Catalog() CatalogSource {
	if a.Manifest == nil {
		return nil
	}
	return a.Manifest
}

// Warmup loads the manifest and verifies credentials once so that
// misconfiguration shows up in the startup log. Failures are not fatal.
func (a *App) Warmup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()

	if a.Manifest != nil {
		if c, err := a.Manifest.Catalog(ctx); err != nil {
			log.Printf("Warning: tool manifest unavailable at %s: %v", a.Manifest.URL(), err)
		} else {
			log.Printf("Loaded tool manifest %s %s with %d tools", c.Name(), c.Version(), len(c.Tools()))
		}
	}
	if a.Guard != nil {
		if err := a.Guard.Check(ctx); err != nil {
			log.Printf("Warning: credential check failed: %v", err)
		}
	}
}

// Refresher keeps the manifest and the credential check current in the
// background. Returns nil when neither is enabled.
func (a *App) Refresher(interval time.Duration) *job.Refresher {
	var tasks []job.Task
	if a.Manifest != nil {
		tasks = append(tasks, job.Task{Name: "tool-manifest", Run: func(ctx context.Context) error {
			_, err := a.Manifest.Refresh(ctx)
			return err
		}})
	}
	if a.Guard != nil {
		tasks = append(tasks, job.Task{Name: "credential-check", Run: a.Guard.Check})
	}
	if len(tasks) == 0 {
		return nil
	}
	return job.NewRefresher(a.tracer, interval, tasks...)
}
