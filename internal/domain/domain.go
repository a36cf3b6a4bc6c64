package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultLookbackDays is used whenever a query carries no usable interval.
const DefaultLookbackDays = 20

// Entities holds everything the extractor could pull out of a query.
// Empty strings mean "not found".
type Entities struct {
	Symbol          string `json:"symbol,omitempty"`
	ContractAddress string `json:"contract_address,omitempty"`
	LookbackDays    int    `json:"lookback_days"`
}

type Intent string

const (
	IntentAlerts         Intent = "alerts"
	IntentProjectSummary Intent = "project_summary"
	IntentSocialTrend    Intent = "social_trend"
	IntentUnresolved     Intent = "unresolved"
)

func (i Intent) IsValid() bool {
	switch i {
	case IntentAlerts, IntentProjectSummary, IntentSocialTrend, IntentUnresolved:
		return true
	}
	return false
}

// RequestSpec names an upstream tool and the query parameters to send it.
type RequestSpec struct {
	Tool   string     `json:"tool"`
	Path   string     `json:"path"`
	Params url.Values `json:"params,omitempty"`
}

// TimeSeriesPoint is one dated record of the social-trend series.
// Metrics only carries fields that were JSON numbers on the record.
type TimeSeriesPoint struct {
	Date    time.Time          `json:"date"`
	Metrics map[string]float64 `json:"metrics"`
}

// Window is a named lookback span such as "7d".
type Window struct {
	Label string `json:"label"`
	Days  int    `json:"days"`
}

// DefaultWindows are the spans analyzed when nothing else is configured.
var DefaultWindows = []Window{
	{Label: "1d", Days: 1},
	{Label: "7d", Days: 7},
	{Label: "30d", Days: 30},
}

// ParseWindow accepts "<N>d" with N > 0.
func ParseWindow(label string) (Window, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if !strings.HasSuffix(label, "d") {
		return Window{}, fmt.Errorf("unsupported window %q", label)
	}
	n, err := strconv.Atoi(strings.TrimSuffix(label, "d"))
	if err != nil || n <= 0 {
		return Window{}, fmt.Errorf("unsupported window %q", label)
	}
	return Window{Label: label, Days: n}, nil
}

// ParseWindows parses a comma separated list, skipping invalid entries.
// Returns DefaultWindows when nothing valid remains.
func ParseWindows(csv string) []Window {
	var out []Window
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		w, err := ParseWindow(part)
		if err != nil {
			continue
		}
		out = append(out, w)
	}
	if len(out) == 0 {
		return append([]Window(nil), DefaultWindows...)
	}
	return out
}

type TrendDirection string

const (
	TrendUp   TrendDirection = "up"
	TrendDown TrendDirection = "down"
	TrendFlat TrendDirection = "flat"
)

// Trend records both direction and magnitude of a metric's movement.
// Slope is the least-squares slope per point; ChangePct is the fitted
// change across the window relative to the window mean.
type Trend struct {
	Direction TrendDirection `json:"direction"`
	Slope     float64        `json:"slope"`
	ChangePct float64        `json:"change_pct"`
}

const (
	StatusOK           = "ok"
	StatusInsufficient = "insufficient data"
)

type MetricStats struct {
	Min        float64  `json:"min"`
	Max        float64  `json:"max"`
	Avg        float64  `json:"avg"`
	Trend      *Trend   `json:"trend,omitempty"`
	Volatility *float64 `json:"volatility,omitempty"`
	Status     string   `json:"status"`
}

type WindowStats struct {
	Window     Window                 `json:"window"`
	Start      time.Time              `json:"start"`
	End        time.Time              `json:"end"`
	PointCount int                    `json:"point_count"`
	Metrics    map[string]MetricStats `json:"metrics"`
}

type AnalysisResult struct {
	Symbol       string        `json:"symbol"`
	LookbackDays int           `json:"lookback_days"`
	Windows      []WindowStats `json:"windows"`
}

// FinalResponse is the one envelope every front door returns.
type FinalResponse struct {
	Query  string     `json:"query"`
	Intent Intent     `json:"intent"`
	Result any        `json:"result,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Kind           string `json:"kind"`
	Message        string `json:"message"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

func (r FinalResponse) Failed() bool {
	return r.Error != nil
}

// Tool is one entry of the upstream tool manifest.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

type ToolParameters struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

type ToolManifest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Tools   []Tool `json:"tools"`
}

// SummaryRequest is everything the narrative generator receives. It holds
// derived statistics only, never raw dated points.
type SummaryRequest struct {
	OriginalQuery string   `json:"original_query"`
	Symbol        string   `json:"symbol"`
	AnalyzedData  string   `json:"analyzed_data"`
	Instructions  string   `json:"instructions"`
	Examples      []string `json:"examples"`
	Constraints   []string `json:"constraints"`
}

// Prompt renders the request as the single text prompt sent for generation.
func (r SummaryRequest) Prompt() string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(r.Instructions))
	sb.WriteString("\n\n")

	if len(r.Examples) > 0 {
		sb.WriteString("Examples of acceptable output:\n")
		for _, ex := range r.Examples {
			sb.WriteString("\n\"")
			sb.WriteString(ex)
			sb.WriteString("\"\n")
		}
		sb.WriteString("\n")
	}

	if len(r.Constraints) > 0 {
		sb.WriteString("Constraints:\n")
		for _, c := range r.Constraints {
			sb.WriteString("- ")
			sb.WriteString(c)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "User question: %s\n", r.OriginalQuery)
	fmt.Fprintf(&sb, "Asset: %s\n\n", r.Symbol)
	sb.WriteString("--- ANALYZED SOCIAL TREND DATA ---\n")
	sb.WriteString(r.AnalyzedData)
	return sb.String()
}
