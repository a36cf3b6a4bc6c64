package credentials

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"time"

	"moonpulse/internal/cache"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL = 5 * time.Minute
	// Upper bound for one shared verification call.
	DefaultCheckTimeout = 15 * time.Second
	keyPrefix  = "moonpulse:credcheck:"
)

// Verifier checks that the configured upstream credentials are accepted.
type Verifier interface {
	VerifyCredentials(ctx context.Context) error
	APIKey() string
}

// Guard runs the credential check at most once per TTL for a given key.
// Concurrent callers share one in-flight check. Failures are not cached.
type Guard struct {
	tracer   trace.Tracer
	verifier Verifier
	cache    cache.Cache
	ttl      time.Duration
	enabled  bool
	timeout  time.Duration
	group    singleflight.Group
}

func NewGuard(tracer trace.Tracer, verifier Verifier, c cache.Cache, ttl time.Duration, enabled bool) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if c == nil {
		c = cache.NewMemoryCache()
	}
	return &Guard{
		tracer:   tracer,
		verifier: verifier,
		cache:    c,
		ttl:      ttl,
		enabled:  enabled,
		timeout:  DefaultCheckTimeout,
	}
}

func (g *Guard) Check(ctx context.Context) error {
	if !g.enabled || g.verifier == nil {
		return nil
	}

	ctx, span := g.tracer.Start(ctx, "credentials.check")
	defer span.End()

	key := cacheKey(g.verifier.APIKey())
	if _, ok := g.cache.Get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	// Callers share the check, so it must not inherit one caller's cancellation.
	shared := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (any, error) {
		checkCtx, cancel := context.WithTimeout(shared, g.timeout)
		defer cancel()
		if err := g.verifier.VerifyCredentials(checkCtx); err != nil {
			return nil, err
		}
		if err := g.cache.Set(checkCtx, key, []byte("ok"), g.ttl); err != nil {
			log.Printf("failed to cache credential check: %v", err)
		}
		return nil, nil
	})

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case res := <-ch:
		err = res.Err
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// cacheKey never stores the raw key.
func cacheKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return keyPrefix + hex.EncodeToString(sum[:8])
}
