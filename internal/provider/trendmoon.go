package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moonpulse/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTrendmoonBaseURL = "https://api.trendmoon.ai"
	DefaultVerifyPath       = "/get_top_alerts_today"

	apiKeyHeader = "Api-key"
	maxErrorBody = 512
)

// TrendmoonClient performs the upstream GETs that back each routed tool.
// Failed calls are never retried.
type TrendmoonClient struct {
	http       *resty.Client
	baseURL    string
	apiKey     string
	verifyPath string
	tracer     trace.Tracer
	limiter    *RateLimiter
}

// NewTrendmoonClient allows perMinute calls per minute, spread evenly.
func NewTrendmoonClient(tracer trace.Tracer, baseURL, apiKey string, timeout time.Duration, perMinute int) *TrendmoonClient {
	if baseURL == "" {
		baseURL = DefaultTrendmoonBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if perMinute <= 0 {
		perMinute = 60
	}
	return &TrendmoonClient{
		http:       resty.New().SetTimeout(timeout).SetRetryCount(0),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		verifyPath: DefaultVerifyPath,
		tracer:     tracer,
		limiter:    PerMinute(perMinute),
	}
}

// Fetch issues the GET described by spec and returns the body untouched.
func (c *TrendmoonClient) Fetch(ctx context.Context, spec domain.RequestSpec) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "trendmoon.fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool", spec.Tool),
		attribute.String("path", spec.Path),
	)

	body, err := c.get(ctx, spec.Tool, spec.Path, spec.Params)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("response.bytes", len(body)))
	return json.RawMessage(body), nil
}

// VerifyCredentials makes one cheap authenticated call. A 401 or 403 is a
// configuration problem, anything else non-2xx is an upstream failure.
func (c *TrendmoonClient) VerifyCredentials(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "trendmoon.verify-credentials")
	defer span.End()

	_, err := c.get(ctx, "credential_check", c.verifyPath, nil)
	if err == nil {
		return nil
	}
	span.RecordError(err)
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) &&
		(upstream.Status == http.StatusUnauthorized || upstream.Status == http.StatusForbidden) {
		return domain.ConfigError("trendmoon rejected the API key (status %d)", upstream.Status)
	}
	return err
}

// APIKey exposes the configured key so callers can key cached checks on it.
func (c *TrendmoonClient) APIKey() string {
	return c.apiKey
}

func (c *TrendmoonClient) get(ctx context.Context, tool, path string, params url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, domain.ConfigError("TRENDMOON_API_KEY is not set")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(apiKeyHeader, c.apiKey).
		SetHeader("Accept", "application/json").
		SetQueryParamsFromValues(params).
		Get(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", tool, err)
	}
	if !resp.IsSuccess() {
		return nil, &domain.UpstreamError{
			Tool:   tool,
			Status: resp.StatusCode(),
			Body:   truncate(strings.TrimSpace(resp.String()), maxErrorBody),
		}
	}
	return resp.Body(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
