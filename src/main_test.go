package main

import (
	"strings"
	"testing"

	"github.com/iafilius/AppStartupBench/src/analysis"
)

func TestSanitizeHostname(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Build-Host01", "build-host01"},
		{"mac book.local", "mac-book-local"},
		{"ci_runner", "ci_runner"},
		{"Üml@ut", "-ml-ut"},
	}
	for _, c := range cases {
		if got := sanitizeHostname(c.in); got != c.want {
			t.Fatalf("sanitizeHostname(%q)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestRepeatValue(t *testing.T) {
	if got := repeatValue(2.5, 3); len(got) != 3 || got[0] != 2.5 || got[2] != 2.5 {
		t.Fatalf("repeatValue(2.5,3)=%v", got)
	}
	if got := repeatValue(1, 0); got != nil {
		t.Fatalf("expected nil for n=0, got %v", got)
	}
	if got := repeatValue(1, -2); got != nil {
		t.Fatalf("expected nil for negative n, got %v", got)
	}
}

func TestClassify(t *testing.T) {
	// Ready time deltas use invert=true: an increase is a degradation.
	if got := classify(25, true); got != "degraded" {
		t.Fatalf("classify(+25%% ready, invert)=%q", got)
	}
	if got := classify(-25, true); got != "improved" {
		t.Fatalf("classify(-25%% ready, invert)=%q", got)
	}
	if got := classify(5, true); got != "stable" {
		t.Fatalf("classify(+5%% ready, invert)=%q", got)
	}
	if got := classify(25, false); got != "improved" {
		t.Fatalf("classify(+25%%)=%q", got)
	}
}

func TestEvaluateAlerts(t *testing.T) {
	th := alertThresholds{ReadyIncreasePct: 30, ErrorRatePct: 20, JitterPct: 25, P99P50Ratio: 2}

	last := sampleBatch("20260118_140000")
	if alerts := evaluateAlerts(last, 5, th); len(alerts) != 0 {
		t.Fatalf("no thresholds exceeded, got %v", alerts)
	}

	last.ErrorRatePct = 35
	last.JitterPct = 40
	last.P99P50Ratio = 2.4
	alerts := evaluateAlerts(last, 42, th)
	if len(alerts) != 4 {
		t.Fatalf("expected 4 alerts, got %v", alerts)
	}
	joined := strings.Join(alerts, ";")
	for _, want := range []string{"ready_increase 42.0% >= 30.0%", "error_rate 35.0% >= 20.0%", "jitter 40.0% >= 25.0%", "p99_p50_ratio 2.40 >= 2.00"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in %v", want, alerts)
		}
	}

	// A ready time decrease never triggers ready_increase.
	if alerts := evaluateAlerts(last, -42, th); len(alerts) != 3 {
		t.Fatalf("expected 3 alerts on improvement, got %v", alerts)
	}

	// Zero thresholds disable their checks entirely.
	if alerts := evaluateAlerts(last, 42, alertThresholds{}); len(alerts) != 0 {
		t.Fatalf("zero thresholds must disable checks, got %v", alerts)
	}
}

func TestBatchLine(t *testing.T) {
	s := sampleBatch("20260118_150000")
	s.Situation = "Idle"
	s.TimeoutLines = 2
	s.BatchDurationMs = 4200
	s.Apps = map[string]*analysis.AppSummary{
		"editor":   {AppName: "editor", Launches: 5, AvgReadyMs: 150, P95ReadyMs: 190},
		"terminal": {AppName: "terminal", Launches: 5, AvgReadyMs: 210, P95ReadyMs: 280},
	}
	line := batchLine(s)
	for _, want := range []string{"[batch 20260118_150000]", "launches=10", "dur=4200ms", "avg_ready=180.0", "timeouts=2", "situation=Idle", "app(editor n=5 avg=150 p95=190)", "app(terminal n=5 avg=210 p95=280)"} {
		if !strings.Contains(line, want) {
			t.Fatalf("batch line missing %q: %s", want, line)
		}
	}
	if strings.Contains(line, "more apps") {
		t.Fatalf("two apps should all be shown: %s", line)
	}

	for i := 0; i < 5; i++ {
		name := string(rune('a' + i))
		s.Apps[name] = &analysis.AppSummary{AppName: name, Launches: 1}
	}
	line = batchLine(s)
	if !strings.Contains(line, "+4 more apps") {
		t.Fatalf("expected +4 more apps with 7 apps total: %s", line)
	}
}
