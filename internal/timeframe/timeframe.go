// Package timeframe maps forward-looking horizons to the listed expiry closest to each.
package timeframe

import (
	"time"
)

// Spec is a named horizon measured in hours from now.
type Spec struct {
	Name  string
	Hours int
}

// Duration returns the horizon as a time.Duration.
func (s Spec) Duration() time.Duration {
	return time.Duration(s.Hours) * time.Hour
}

var defaults = []Spec{
	{Name: "12H", Hours: 12},
	{Name: "24H", Hours: 24},
	{Name: "48H", Hours: 48},
	{Name: "3D", Hours: 72},
	{Name: "1W", Hours: 168},
	{Name: "2W", Hours: 336},
	{Name: "1M", Hours: 720},
}

// Defaults returns the reporting horizons in output order. The slice is a copy.
func Defaults() []Spec {
	out := make([]Spec, len(defaults))
	copy(out, defaults)
	return out
}

// Select returns the expiry closest to now plus the horizon of s. expiries must
// be sorted ascending; the earliest expiry wins when two are equally close. The
// bool is false only for an empty input.
func Select(expiries []time.Time, s Spec, now time.Time) (time.Time, bool) {
	if len(expiries) == 0 {
		return time.Time{}, false
	}

	target := now.Add(s.Duration())
	best := expiries[0]
	bestDiff := absDuration(best.Sub(target))
	for _, e := range expiries[1:] {
		if d := absDuration(e.Sub(target)); d < bestDiff {
			best, bestDiff = e, d
		}
	}
	return best, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
