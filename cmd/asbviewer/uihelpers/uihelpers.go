// Package uihelpers holds pure layout and axis computations shared by the
// viewer window, the headless screenshot mode and their tests.
package uihelpers

import (
	"math"
	"strconv"
	"time"
)

// ComputeChartDimensions applies the width/height clamp rules used for charts.
// Input: desired raw width (e.g., canvas width). Returns clamped width & height.
func ComputeChartDimensions(rawW int) (int, int) {
	w := rawW
	if w < 800 {
		w = 800
	}
	h := int(float32(w) * 0.33)
	if h < 280 {
		h = 280
	}
	if h > 520 {
		h = 520
	}
	return w, h
}

// ComputeTableColumnWidths returns the 9 column widths for the batches table given a window width.
// Order: RunTag, Launches, Errors, AvgReady, Median, P95, P99, AvgTotal, Situation.
// A zero width hides the column.
func ComputeTableColumnWidths(winW float32) [9]int {
	const compactBreakpoint = 900
	const ultraCompactBreakpoint = 520
	if winW < ultraCompactBreakpoint {
		return [9]int{120, 60, 0, 90, 0, 0, 0, 0, 0}
	}
	if winW < compactBreakpoint {
		if winW < 760 {
			return [9]int{150, 60, 55, 95, 95, 0, 0, 0, 0}
		}
		return [9]int{150, 60, 55, 95, 95, 90, 0, 0, 90}
	}
	return [9]int{210, 70, 60, 105, 100, 95, 95, 105, 110}
}

// BuildNumericTicks generates up to n tick marks spanning [min,max] using the 1,2,2.5,5 pattern.
// Returns slice of raw numeric positions (label formatting left to caller for domain specific units).
func BuildNumericTicks(min, max float64, n int) []float64 {
	if n < 2 || math.IsNaN(min) || math.IsNaN(max) {
		return nil
	}
	if max <= min {
		max = min + 1
	}
	span := max - min
	mag := math.Pow(10, math.Floor(math.Log10(span/float64(n-1))))
	candidates := []float64{1, 2, 2.5, 5, 10}
	bestStep := mag
	bestScore := math.MaxFloat64
	for _, c := range candidates {
		step := c * mag
		count := math.Ceil(span/step) + 1
		if count < 2 {
			count = 2
		}
		diff := math.Abs(count - float64(n))
		if diff < bestScore {
			bestScore = diff
			bestStep = step
		}
	}
	start := math.Floor(min/bestStep) * bestStep
	end := math.Ceil(max/bestStep) * bestStep
	var out []float64
	for v := start; v <= end+bestStep*0.5; v += bestStep {
		out = append(out, round6(v))
	}
	if len(out) < 2 {
		out = []float64{min, max}
	}
	return out
}

// FormatNumericTick provides a compact label for a tick value.
func FormatNumericTick(v float64) string {
	av := math.Abs(v)
	switch {
	case av >= 100:
		return strconv.FormatInt(int64(math.Round(v)), 10)
	case av >= 10:
		return strconv.FormatFloat(v, 'f', 1, 64)
	case av >= 1:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case av >= 0.01:
		return strconv.FormatFloat(v, 'f', 3, 64)
	default:
		return strconv.FormatFloat(v, 'f', 4, 64)
	}
}

// PickTimeStep selects a tick step and label layout for a time axis span.
func PickTimeStep(span time.Duration) (time.Duration, string) {
	switch {
	case span <= 2*time.Minute:
		return 10 * time.Second, "15:04:05"
	case span <= 10*time.Minute:
		return 1 * time.Minute, "15:04"
	case span <= 30*time.Minute:
		return 5 * time.Minute, "15:04"
	case span <= 2*time.Hour:
		return 10 * time.Minute, "15:04"
	case span <= 6*time.Hour:
		return 30 * time.Minute, "Jan 2 15:04"
	case span <= 24*time.Hour:
		return 1 * time.Hour, "Jan 2 15:04"
	case span <= 3*24*time.Hour:
		return 6 * time.Hour, "Jan 2 15:04"
	case span <= 14*24*time.Hour:
		return 1 * 24 * time.Hour, "Jan 2"
	default:
		return 7 * 24 * time.Hour, "Jan 2"
	}
}

// BuildTimeTicks returns rounded tick instants covering [min,max] plus the
// label layout for the chosen step. Tick times align to UTC multiples of the
// step to avoid DST/local anomalies; the count is capped to stay readable.
func BuildTimeTicks(min, max time.Time, maxTicks int) ([]time.Time, string) {
	if max.Before(min) {
		min, max = max, min
	}
	step, layout := PickTimeStep(max.Sub(min))
	if maxTicks < 2 {
		maxTicks = 2
	}
	for max.Sub(min) > step*time.Duration(maxTicks) {
		step *= 2
	}
	s := min.UTC().Unix()
	st := int64(step.Seconds())
	if st <= 0 {
		st = 1
	}
	aligned := time.Unix((s/st)*st, 0).UTC()
	var out []time.Time
	for t := aligned; !t.After(max.UTC().Add(step)); t = t.Add(step) {
		out = append(out, t)
		if len(out) > maxTicks {
			break
		}
	}
	if len(out) < 2 {
		out = append(out, aligned.Add(step))
	}
	return out, layout
}

// round6 rounds to 6 decimal places to stabilize test comparisons / labels prep.
func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }
