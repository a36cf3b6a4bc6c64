package analysis

import (
	"context"
	"math"
	"sort"
	"time"

	"moonpulse/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Fitted moves smaller than this share of the window mean count as flat.
const defaultFlatThresholdPct = 1.0

// Analyzer computes per-window statistics over a dated metric series.
// Windows are independent of each other and are evaluated concurrently.
type Analyzer struct {
	tracer           trace.Tracer
	flatThresholdPct float64
}

func NewAnalyzer(tracer trace.Tracer) *Analyzer {
	return &Analyzer{tracer: tracer, flatThresholdPct: defaultFlatThresholdPct}
}

// Analyze returns one WindowStats per window, in the order given.
// An empty series yields domain.ErrEmptySeries.
func (a *Analyzer) Analyze(
	ctx context.Context,
	symbol string,
	lookbackDays int,
	series []domain.TimeSeriesPoint,
	windows []domain.Window,
) (domain.AnalysisResult, error) {
	ctx, span := a.tracer.Start(ctx, "analysis.analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.Int("series.points", len(series)),
		attribute.Int("windows", len(windows)),
	)

	if len(series) == 0 {
		return domain.AnalysisResult{}, domain.ErrEmptySeries
	}
	if len(windows) == 0 {
		windows = domain.DefaultWindows
	}

	sorted := sortByDate(series)
	stats := make([]domain.WindowStats, len(windows))

	g, gCtx := errgroup.WithContext(ctx)
	for i, w := range windows {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			stats[i] = a.windowStats(sliceWindow(sorted, w.Days), w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return domain.AnalysisResult{}, err
	}

	return domain.AnalysisResult{
		Symbol:       symbol,
		LookbackDays: lookbackDays,
		Windows:      stats,
	}, nil
}

// sortByDate returns an ascending copy; equal dates keep input order.
func sortByDate(series []domain.TimeSeriesPoint) []domain.TimeSeriesPoint {
	out := make([]domain.TimeSeriesPoint, len(series))
	copy(out, series)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// sliceWindow keeps the points within `days` of the latest point. The
// latest point is always included, so the result is never empty for a
// non-empty series.
func sliceWindow(sorted []domain.TimeSeriesPoint, days int) []domain.TimeSeriesPoint {
	end := sorted[len(sorted)-1].Date
	cutoff := end.Add(-time.Duration(days) * 24 * time.Hour)
	start := sort.Search(len(sorted), func(i int) bool {
		return sorted[i].Date.After(cutoff)
	})
	return sorted[start:]
}

func (a *Analyzer) windowStats(points []domain.TimeSeriesPoint, w domain.Window) domain.WindowStats {
	ws := domain.WindowStats{
		Window:     w,
		PointCount: len(points),
		Metrics:    map[string]domain.MetricStats{},
	}
	if len(points) == 0 {
		return ws
	}
	ws.Start = points[0].Date
	ws.End = points[len(points)-1].Date

	for _, name := range completeMetrics(points) {
		values := make([]float64, len(points))
		for i, p := range points {
			values[i] = p.Metrics[name]
		}
		ws.Metrics[name] = a.metricStats(values)
	}
	return ws
}

// completeMetrics lists metrics that carry a number on every point.
func completeMetrics(points []domain.TimeSeriesPoint) []string {
	var names []string
	for name := range points[0].Metrics {
		present := true
		for _, p := range points[1:] {
			if _, ok := p.Metrics[name]; !ok {
				present = false
				break
			}
		}
		if present {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (a *Analyzer) metricStats(values []float64) domain.MetricStats {
	ms := domain.MetricStats{
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Avg:    stat.Mean(values, nil),
		Status: domain.StatusInsufficient,
	}
	if len(values) < 2 {
		return ms
	}

	mean, std := stat.PopMeanStdDev(values, nil)
	ms.Avg = mean
	ms.Volatility = &std
	ms.Trend = a.trend(values, mean)
	ms.Status = domain.StatusOK
	return ms
}

// trend fits a least-squares line over index positions. The fitted change
// across the window is expressed relative to the window mean.
func (a *Analyzer) trend(values []float64, mean float64) *domain.Trend {
	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, slope := stat.LinearRegression(xs, values, nil, false)
	fitted := slope * float64(len(values)-1)

	t := &domain.Trend{Slope: slope, Direction: domain.TrendFlat}
	if mean != 0 {
		t.ChangePct = fitted / math.Abs(mean) * 100
		switch {
		case t.ChangePct >= a.flatThresholdPct:
			t.Direction = domain.TrendUp
		case t.ChangePct <= -a.flatThresholdPct:
			t.Direction = domain.TrendDown
		}
		return t
	}
	switch {
	case fitted > 0:
		t.Direction = domain.TrendUp
	case fitted < 0:
		t.Direction = domain.TrendDown
	}
	return t
}
