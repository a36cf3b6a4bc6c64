package analysis

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"moonpulse/internal/domain"

	"github.com/tidwall/gjson"
)

var dateKeys = map[string]struct{}{
	"date":      {},
	"datetime":  {},
	"time":      {},
	"timestamp": {},
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// DecodeSeries accepts a bare array of records or {"data": [...]}.
// Only JSON numbers become metrics; records without a parsable date are
// skipped.
func DecodeSeries(raw []byte) ([]domain.TimeSeriesPoint, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid json", domain.ErrUnusableData)
	}

	root := gjson.ParseBytes(raw)
	var records gjson.Result
	switch {
	case root.IsArray():
		records = root
	case root.Get("data").IsArray():
		records = root.Get("data")
	default:
		return nil, fmt.Errorf("%w: expected an array or an object with a data array", domain.ErrUnusableData)
	}

	var points []domain.TimeSeriesPoint
	total := 0
	records.ForEach(func(_, rec gjson.Result) bool {
		total++
		if p, ok := decodePoint(rec); ok {
			points = append(points, p)
		}
		return true
	})

	if total == 0 {
		return nil, domain.ErrEmptySeries
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: none of %d records carried a date", domain.ErrUnusableData, total)
	}
	return points, nil
}

func decodePoint(rec gjson.Result) (domain.TimeSeriesPoint, bool) {
	if !rec.IsObject() {
		return domain.TimeSeriesPoint{}, false
	}
	p := domain.TimeSeriesPoint{Metrics: map[string]float64{}}
	dated := false
	rec.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if _, isDate := dateKeys[strings.ToLower(key)]; isDate {
			if !dated {
				if ts, ok := parseDate(v); ok {
					p.Date = ts
					dated = true
				}
			}
			return true
		}
		if v.Type == gjson.Number {
			p.Metrics[key] = v.Float()
		}
		return true
	})
	return p, dated
}

func parseDate(v gjson.Result) (time.Time, bool) {
	switch v.Type {
	case gjson.Number:
		ts := v.Int()
		if ts <= 0 {
			return time.Time{}, false
		}
		if ts > 1_000_000_000_000 {
			return time.UnixMilli(ts).UTC(), true
		}
		return time.Unix(ts, 0).UTC(), true
	case gjson.String:
		s := strings.TrimSpace(v.String())
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
			return parseDate(gjson.Result{Type: gjson.Number, Num: float64(n), Raw: s})
		}
	}
	return time.Time{}, false
}
