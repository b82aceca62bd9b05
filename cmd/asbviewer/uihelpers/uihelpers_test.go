package uihelpers

import (
	"math"
	"testing"
	"time"
)

func TestComputeChartDimensions(t *testing.T) {
	cases := []struct {
		in    int
		wantW int
	}{
		{100, 800},
		{799, 800},
		{800, 800},
		{1600, 1600},
	}
	for _, c := range cases {
		w, h := ComputeChartDimensions(c.in)
		if w != c.wantW {
			t.Fatalf("input %d => width %d want %d", c.in, w, c.wantW)
		}
		if h < 280 || h > 520 {
			t.Fatalf("height clamp violated for input %d => h=%d", c.in, h)
		}
	}
}

func TestComputeTableColumnWidths(t *testing.T) {
	ultra := ComputeTableColumnWidths(400)
	if ultra != [9]int{120, 60, 0, 90, 0, 0, 0, 0, 0} {
		t.Fatalf("ultra widths mismatch: %#v", ultra)
	}
	compactHide := ComputeTableColumnWidths(700)
	if compactHide[5] != 0 || compactHide[6] != 0 || compactHide[7] != 0 || compactHide[8] != 0 {
		t.Fatalf("expected percentile/total/situation hidden at 700: %#v", compactHide)
	}
	compactFull := ComputeTableColumnWidths(850)
	if compactFull[5] == 0 || compactFull[8] == 0 {
		t.Fatalf("expected P95 and situation visible at 850: %#v", compactFull)
	}
	full := ComputeTableColumnWidths(1200)
	expectedFull := [9]int{210, 70, 60, 105, 100, 95, 95, 105, 110}
	if full != expectedFull {
		t.Fatalf("full widths mismatch got %#v want %#v", full, expectedFull)
	}

	// Edge transitions around breakpoints
	preUltra := ComputeTableColumnWidths(521)
	if preUltra[0] != 150 {
		t.Fatalf("expected compact layout at 521 got %#v", preUltra)
	}
	ultraEdge := ComputeTableColumnWidths(519)
	if ultraEdge[0] != 120 || ultraEdge[3] != 90 {
		t.Fatalf("expected ultra layout at 519 got %#v", ultraEdge)
	}
	preHide := ComputeTableColumnWidths(761)
	if preHide[5] == 0 {
		t.Fatalf("expected P95 visible at 761: %#v", preHide)
	}
	postHide := ComputeTableColumnWidths(759)
	if postHide[5] != 0 {
		t.Fatalf("expected P95 hidden at 759: %#v", postHide)
	}
	preFull := ComputeTableColumnWidths(901)
	if preFull[0] != 210 {
		t.Fatalf("expected full layout at 901: %#v", preFull)
	}
}

func TestBuildNumericTicksAndFormat(t *testing.T) {
	cases := []struct {
		min, max float64
		n        int
	}{
		{0, 100, 6},
		{0, 1, 5},
		{5, 5.2, 4},
		{-10, 10, 7},
	}
	for _, c := range cases {
		vals := BuildNumericTicks(c.min, c.max, c.n)
		if len(vals) < 2 {
			t.Fatalf("expected >=2 ticks for %#v got %v", c, vals)
		}
		if vals[0] > c.min && math.Abs(vals[0]-c.min) > 1e-6 { // allow start below min but not above
			t.Fatalf("first tick %v should not exceed min %v", vals[0], c.min)
		}
		if last := vals[len(vals)-1]; last < c.max && math.Abs(last-c.max) > 1e-6 { // allow end above max but not below
			t.Fatalf("last tick %v should not be below max %v (vals=%v)", last, c.max, vals)
		}
		for _, v := range vals {
			_ = FormatNumericTick(v)
		}
	}

	// Specific formatting thresholds
	if got := FormatNumericTick(123.4); got != "123" {
		t.Fatalf("format 123.4 => %q want 123", got)
	}
	if got := FormatNumericTick(12.34); got != "12.3" {
		t.Fatalf("format 12.34 => %q want 12.3", got)
	}
	if got := FormatNumericTick(1.234); got != "1.23" {
		t.Fatalf("format 1.234 => %q want 1.23", got)
	}
	if got := FormatNumericTick(0.1234); got != "0.123" {
		t.Fatalf("format 0.1234 => %q want 0.123", got)
	}
	if got := FormatNumericTick(0.001234); got != "0.0012" {
		t.Fatalf("format 0.001234 => %q want 0.0012", got)
	}
}

func TestPickTimeStep(t *testing.T) {
	cases := []struct {
		span   time.Duration
		step   time.Duration
		layout string
	}{
		{time.Minute, 10 * time.Second, "15:04:05"},
		{8 * time.Minute, time.Minute, "15:04"},
		{90 * time.Minute, 10 * time.Minute, "15:04"},
		{5 * time.Hour, 30 * time.Minute, "Jan 2 15:04"},
		{20 * time.Hour, time.Hour, "Jan 2 15:04"},
		{10 * 24 * time.Hour, 24 * time.Hour, "Jan 2"},
		{60 * 24 * time.Hour, 7 * 24 * time.Hour, "Jan 2"},
	}
	for _, c := range cases {
		step, layout := PickTimeStep(c.span)
		if step != c.step || layout != c.layout {
			t.Fatalf("span %v => (%v, %q) want (%v, %q)", c.span, step, layout, c.step, c.layout)
		}
	}
}

func TestBuildTimeTicks(t *testing.T) {
	min := time.Date(2025, 1, 1, 12, 0, 7, 0, time.UTC)
	max := min.Add(9 * time.Minute)
	ticks, layout := BuildTimeTicks(min, max, 20)
	if len(ticks) < 2 {
		t.Fatalf("expected at least 2 ticks, got %v", ticks)
	}
	if layout == "" {
		t.Fatalf("missing label layout")
	}
	if ticks[0].After(min) {
		t.Fatalf("first tick %v should not be after min %v", ticks[0], min)
	}
	if last := ticks[len(ticks)-1]; last.Before(max) {
		t.Fatalf("last tick %v should not be before max %v", last, max)
	}
	// step must align to UTC boundaries
	if ticks[0].Second() != 0 {
		t.Fatalf("tick not aligned: %v", ticks[0])
	}

	// tick count respects the cap (plus the final bracketing tick)
	capped, _ := BuildTimeTicks(min, min.Add(10*time.Minute), 5)
	if len(capped) > 6 {
		t.Fatalf("cap exceeded: %d ticks", len(capped))
	}

	// reversed arguments are tolerated
	rev, _ := BuildTimeTicks(max, min, 20)
	if len(rev) < 2 {
		t.Fatalf("reversed range should still produce ticks: %v", rev)
	}

	// identical instants still produce two ticks
	same, _ := BuildTimeTicks(min, min, 20)
	if len(same) < 2 {
		t.Fatalf("degenerate span needs at least 2 ticks: %v", same)
	}
}
