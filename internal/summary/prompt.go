package summary

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"moonpulse/internal/domain"
)

const instructions = `Your ONLY task is to write a single, concise summary paragraph that tells the most important market story for the asset below.

Analyze the social trend statistics internally, focusing on:
1. Temporal patterns: how metrics changed across the analysis windows, not just their latest level.
2. Correlation: relationships between price movement and social metrics.
3. Sentiment shifts: changes in community tone and what they suggest.
4. Divergences: social metrics and price moving in opposite directions.
5. Anomalies: unusual spikes or drops and their potential significance.

Treat the Galaxy Score (an aggregate of social engagement, sentiment and influence) as an overall indicator of social strength.

Interpretation context:
- Rising social mentions during price drops often indicate market concern.
- Increasing sentiment during consolidation often precedes price movement.
- Social dominance above 0.1% indicates significant market attention.
- Sentiment scores above 60 generally reflect a positive community outlook.
- Sustained increases in Galaxy Score often correlate with upcoming price action.

Your value is in the story that connects these metrics, not in reporting numbers.`

var examples = []string{
	"Over the past month SOL has drawn steadily more attention while its price drifted sideways, and the latest week shows sentiment firming well into positive territory; that combination of growing interest and improving tone during consolidation has historically come before a decisive move, although the sharp one-day spike in mentions suggests some of the enthusiasm is reactive.",
	"ETH's price slipped over the week even as social mentions climbed, a divergence that usually signals concern rather than conviction, and with its Galaxy Score flattening and sentiment hovering near neutral the community appears to be waiting for confirmation before committing in either direction.",
}

var constraints = []string{
	"Respond with exactly one paragraph of prose.",
	"Do not use lists, bullet points, headings or itemized data.",
	"Do not dump raw numbers; mention a figure only when it anchors the story.",
	"Do not invent data that is not present in the statistics.",
}

// FormatAnalysis renders per-window derived statistics. It deliberately
// omits window dates and individual points.
func FormatAnalysis(result domain.AnalysisResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Lookback: %d days\n", result.LookbackDays)

	for _, w := range result.Windows {
		fmt.Fprintf(&sb, "\nWindow %s (%d points):\n", w.Window.Label, w.PointCount)
		if len(w.Metrics) == 0 {
			sb.WriteString("  no numeric metrics\n")
			continue
		}

		names := make([]string, 0, len(w.Metrics))
		for name := range w.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			m := w.Metrics[name]
			fmt.Fprintf(&sb, "  %s: min %s, max %s, avg %s",
				name, formatNumber(m.Min), formatNumber(m.Max), formatNumber(m.Avg))
			if m.Status != domain.StatusOK {
				fmt.Fprintf(&sb, ", trend %s\n", m.Status)
				continue
			}
			if m.Trend != nil {
				fmt.Fprintf(&sb, ", trend %s (%+.1f%%)", m.Trend.Direction, m.Trend.ChangePct)
			}
			if m.Volatility != nil {
				fmt.Fprintf(&sb, ", volatility %s", formatNumber(*m.Volatility))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func formatNumber(v float64) string {
	if math.Abs(v) >= 1000 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.4g", v)
}
