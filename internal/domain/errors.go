package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration covers missing credentials and malformed manifests.
	ErrConfiguration = errors.New("configuration error")
	// ErrEmptySeries is returned by the analyzer for a series with no points.
	ErrEmptySeries = errors.New("empty time series")
	// ErrUnusableData means the upstream payload had no recognizable series.
	ErrUnusableData = errors.New("unusable data shape")
)

// UpstreamError carries a non-success status from an upstream call.
type UpstreamError struct {
	Tool   string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream %s: status %d", e.Tool, e.Status)
	}
	return fmt.Sprintf("upstream %s: status %d: %s", e.Tool, e.Status, e.Body)
}

// ConfigError wraps a message so it matches ErrConfiguration.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// IsNoData reports whether err should become a "no data available" answer
// rather than a failure.
func IsNoData(err error) bool {
	return errors.Is(err, ErrEmptySeries) || errors.Is(err, ErrUnusableData)
}
