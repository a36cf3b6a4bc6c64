package router

import (
	"net/url"
	"strconv"

	"moonpulse/internal/domain"
)

// Upstream tool names as advertised by the tool manifest.
const (
	ToolSocialTrend    = "trendmoon_get_social_trend"
	ToolTopAlerts      = "trendmoon_get_top_alerts_today"
	ToolProjectSummary = "trendmoon_get_project_summary"
)

const (
	projectSummaryDaysAgo = 7
	trendTimeInterval     = "1d"
)

// Paths maps each tool to its path under the upstream base URL.
type Paths struct {
	SocialTrend    string
	TopAlerts      string
	ProjectSummary string
}

func DefaultPaths() Paths {
	return Paths{
		SocialTrend:    "/social/trend",
		TopAlerts:      "/get_top_alerts_today",
		ProjectSummary: "/get_project_summary",
	}
}

// Router shapes the upstream request for an intent. It performs no I/O.
type Router struct {
	paths Paths
}

func New(paths Paths) *Router {
	def := DefaultPaths()
	if paths.SocialTrend == "" {
		paths.SocialTrend = def.SocialTrend
	}
	if paths.TopAlerts == "" {
		paths.TopAlerts = def.TopAlerts
	}
	if paths.ProjectSummary == "" {
		paths.ProjectSummary = def.ProjectSummary
	}
	return &Router{paths: paths}
}

// Route returns false when the intent has no upstream request: Unresolved,
// or an intent whose required entity is missing.
func (r *Router) Route(in domain.Intent, e domain.Entities) (domain.RequestSpec, bool) {
	switch in {
	case domain.IntentAlerts:
		return domain.RequestSpec{Tool: ToolTopAlerts, Path: r.paths.TopAlerts}, true

	case domain.IntentProjectSummary:
		if e.ContractAddress == "" {
			return domain.RequestSpec{}, false
		}
		params := url.Values{}
		params.Set("contract_address", e.ContractAddress)
		params.Set("force_regenerate", "false")
		params.Set("days_ago", strconv.Itoa(projectSummaryDaysAgo))
		return domain.RequestSpec{Tool: ToolProjectSummary, Path: r.paths.ProjectSummary, Params: params}, true

	case domain.IntentSocialTrend:
		if e.Symbol == "" {
			return domain.RequestSpec{}, false
		}
		days := e.LookbackDays
		if days <= 0 {
			days = domain.DefaultLookbackDays
		}
		params := url.Values{}
		params.Set("symbol", e.Symbol)
		params.Set("date_interval", strconv.Itoa(days))
		params.Set("time_interval", trendTimeInterval)
		return domain.RequestSpec{Tool: ToolSocialTrend, Path: r.paths.SocialTrend, Params: params}, true
	}
	return domain.RequestSpec{}, false
}
