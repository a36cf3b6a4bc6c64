package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"moonpulse/internal/domain"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultManifestURL     = "http://localhost:3000/.well-known/ai-plugin.json"
	DefaultManifestTimeout = 10 * time.Second
)

// Catalog is the set of tools the upstream manifest advertises.
type Catalog struct {
	name    string
	version string
	tools   map[string]domain.Tool
}

func NewCatalog(m domain.ToolManifest) *Catalog {
	c := &Catalog{name: m.Name, version: m.Version, tools: make(map[string]domain.Tool, len(m.Tools))}
	for _, t := range m.Tools {
		c.tools[t.Name] = t
	}
	return c
}

func (c *Catalog) Name() string    { return c.name }
func (c *Catalog) Version() string { return c.version }

func (c *Catalog) Lookup(name string) (domain.Tool, bool) {
	t, ok := c.tools[name]
	return t, ok
}

// Require fails with a configuration error when name is not advertised.
func (c *Catalog) Require(name string) error {
	if _, ok := c.tools[name]; !ok {
		return domain.ConfigError("tool %q is not advertised by manifest %s", name, c.name)
	}
	return nil
}

// Tools returns the advertised tools sorted by name.
func (c *Catalog) Tools() []domain.Tool {
	out := make([]domain.Tool, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ParseManifest rejects payloads whose "tools" field is absent or not an array.
func ParseManifest(raw []byte) (domain.ToolManifest, error) {
	if !gjson.ValidBytes(raw) {
		return domain.ToolManifest{}, domain.ConfigError("tool manifest is not valid JSON")
	}
	if tools := gjson.GetBytes(raw, "tools"); !tools.IsArray() {
		return domain.ToolManifest{}, domain.ConfigError("tool manifest is missing a tools array")
	}
	var m domain.ToolManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.ToolManifest{}, domain.ConfigError("decode tool manifest: %v", err)
	}
	return m, nil
}

// ManifestSource fetches the manifest on first use and keeps the result.
// A failed fetch is not cached, so the next call tries again. Concurrent
// callers share one in-flight fetch and each gives up at its own deadline.
type ManifestSource struct {
	http    *resty.Client
	url     string
	timeout time.Duration
	tracer  trace.Tracer
	group   singleflight.Group

	mu      sync.RWMutex
	catalog *Catalog
}

func NewManifestSource(tracer trace.Tracer, url string) *ManifestSource {
	if strings.TrimSpace(url) == "" {
		url = DefaultManifestURL
	}
	return &ManifestSource{
		http:    resty.New().SetTimeout(DefaultManifestTimeout).SetRetryCount(0),
		url:     url,
		timeout: DefaultManifestTimeout,
		tracer:  tracer,
	}
}

func (s *ManifestSource) URL() string {
	return s.url
}

func (s *ManifestSource) Catalog(ctx context.Context) (*Catalog, error) {
	if c := s.current(); c != nil {
		return c, nil
	}

	// The shared fetch outlives any single caller; s.timeout bounds it.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan("catalog", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(shared, s.timeout)
		defer cancel()
		c, err := s.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.catalog == nil {
			s.catalog = c
		}
		return s.catalog, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Catalog), nil
	}
}

// Refresh refetches the manifest. On failure the previous catalog stays in use.
func (s *ManifestSource) Refresh(ctx context.Context) (*Catalog, error) {
	c, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.catalog = c
	s.mu.Unlock()
	return c, nil
}

func (s *ManifestSource) current() *Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

func (s *ManifestSource) fetch(ctx context.Context) (*Catalog, error) {
	ctx, span := s.tracer.Start(ctx, "manifest.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("manifest.url", s.url))

	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(s.url)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: fetch tool manifest: %w", domain.ErrConfiguration, err)
	}
	if !resp.IsSuccess() {
		return nil, &domain.UpstreamError{
			Tool:   "manifest",
			Status: resp.StatusCode(),
			Body:   truncate(strings.TrimSpace(resp.String()), maxErrorBody),
		}
	}

	m, err := ParseManifest(resp.Body())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("manifest.tools", len(m.Tools)))
	return NewCatalog(m), nil
}
