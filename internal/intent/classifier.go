package intent

import (
	"regexp"

	"moonpulse/internal/domain"
	"moonpulse/internal/extract"
)

var (
	projectRx = regexp.MustCompile(`(?i)\b(projects?|summary)\b`)
	alertRx   = regexp.MustCompile(`(?i)\balerts?\b`)
	trendRx   = regexp.MustCompile(`(?i)\b(trends?|trending|social|sentiment|market|price|analys\w*|analyz\w*|study)\b`)
)

// Rule is one row of the classification table.
type Rule struct {
	Intent domain.Intent
	Match  func(text string, e domain.Entities) bool
}

// Classifier evaluates its rules top to bottom; the first match wins and
// Unresolved is returned when nothing matches.
type Classifier struct {
	rules []Rule
}

func NewClassifier(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules(extract.DefaultSymbolTable())
	}
	return &Classifier{rules: rules}
}

func (c *Classifier) Classify(text string, e domain.Entities) domain.Intent {
	for _, r := range c.rules {
		if r.Match(text, e) {
			return r.Intent
		}
	}
	return domain.IntentUnresolved
}

// DefaultRules is the production precedence: project or contract address,
// then alerts, then trend keywords backed by a resolved symbol. The symbol
// table doubles as the asset-name hint for the trend keyword set.
func DefaultRules(assetHints *extract.SymbolTable) []Rule {
	return []Rule{
		{
			Intent: domain.IntentProjectSummary,
			Match: func(text string, e domain.Entities) bool {
				return e.ContractAddress != "" || projectRx.MatchString(text)
			},
		},
		{
			Intent: domain.IntentAlerts,
			Match: func(text string, _ domain.Entities) bool {
				return alertRx.MatchString(text)
			},
		},
		{
			Intent: domain.IntentSocialTrend,
			Match: func(text string, e domain.Entities) bool {
				if e.Symbol == "" {
					return false
				}
				if trendRx.MatchString(text) {
					return true
				}
				_, hinted := assetHints.Lookup(text)
				return hinted
			},
		},
	}
}
