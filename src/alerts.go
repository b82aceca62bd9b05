package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iafilius/AppStartupBench/src/analysis"
)

// alertThresholds mirrors the CLI alert flags inside the JSON report.
type alertThresholds struct {
	ReadyIncreasePct float64 `json:"ready_increase_pct"`
	ErrorRatePct     float64 `json:"error_rate_pct"`
	JitterPct        float64 `json:"jitter_pct"`
	P99P50Ratio      float64 `json:"p99_p50_ratio"`
}

type lastBatchSummary struct {
	Launches         int     `json:"launches"`
	AvgReadyMs       float64 `json:"avg_ready_ms"`
	MedianReadyMs    float64 `json:"median_ready_ms"`
	P50ReadyMs       float64 `json:"ready_p50_ms"`
	P90ReadyMs       float64 `json:"ready_p90_ms"`
	P95ReadyMs       float64 `json:"ready_p95_ms"`
	P99ReadyMs       float64 `json:"ready_p99_ms"`
	P99P50Ratio      float64 `json:"ready_p99_p50_ratio"`
	AvgFirstOutputMs float64 `json:"avg_first_output_ms"`
	AvgTotalMs       float64 `json:"avg_total_ms"`
	ErrorLines       int     `json:"error_lines"`
	ErrorRatePct     float64 `json:"error_rate_pct"`
	TimeoutLines     int     `json:"timeout_lines"`
	JitterPct        float64 `json:"jitter_pct"`
}

type comparisonSummary struct {
	PrevAvgReadyMs   float64 `json:"prev_avg_ready_ms"`
	ReadyDeltaPct    float64 `json:"ready_delta_pct"`
	PrevErrorRatePct float64 `json:"prev_error_rate_pct"`
	ErrorRateDeltaPt float64 `json:"error_rate_delta_pt"`
	ErrorRatePct     float64 `json:"error_rate_pct"`
}

type alertReport struct {
	GeneratedAt      string             `json:"generated_at"`
	SchemaVersion    int                `json:"schema_version"`
	RunTag           string             `json:"run_tag"`
	BatchesCompared  int                `json:"batches_compared"`
	LastBatchSummary lastBatchSummary   `json:"last_batch_summary"`
	Comparison       *comparisonSummary `json:"comparison,omitempty"`
	SingleBatch      bool               `json:"single_batch,omitempty"`
	Alerts           []string           `json:"alerts"`
	Thresholds       alertThresholds    `json:"thresholds"`
}

// writeAlertJSON persists a structured alert report capturing the latest batch summary, optional comparison, thresholds & alerts.
func writeAlertJSON(path string, schemaVersion int, last analysis.BatchSummary, comp *comparisonSummary, alerts []string, th alertThresholds, batchesCompared int) {
	if alerts == nil {
		alerts = []string{}
	}
	rep := alertReport{
		GeneratedAt:     time.Now().UTC().Format(time.RFC3339Nano),
		SchemaVersion:   schemaVersion,
		RunTag:          last.RunTag,
		BatchesCompared: batchesCompared,
		LastBatchSummary: lastBatchSummary{
			Launches:         last.Lines,
			AvgReadyMs:       last.AvgReadyMs,
			MedianReadyMs:    last.MedianReadyMs,
			P50ReadyMs:       last.P50ReadyMs,
			P90ReadyMs:       last.P90ReadyMs,
			P95ReadyMs:       last.P95ReadyMs,
			P99ReadyMs:       last.P99ReadyMs,
			P99P50Ratio:      last.P99P50Ratio,
			AvgFirstOutputMs: last.AvgFirstOutputMs,
			AvgTotalMs:       last.AvgTotalMs,
			ErrorLines:       last.ErrorLines,
			ErrorRatePct:     last.ErrorRatePct,
			TimeoutLines:     last.TimeoutLines,
			JitterPct:        last.JitterPct,
		},
		Alerts:     alerts,
		Thresholds: th,
	}
	if comp != nil {
		rep.Comparison = comp
	} else {
		rep.SingleBatch = true
	}
	b, _ := json.MarshalIndent(rep, "", "  ")
	if err := os.WriteFile(path, b, 0644); err != nil {
		fmt.Printf("[analysis] write alerts json error: %v\n", err)
	} else {
		fmt.Printf("[analysis] wrote alert report JSON: %s\n", path)
	}
}

// deriveDefaultAlertsPath returns an alerts_<run_tag>.json path; if CWD is src/, write to parent repo root.
func deriveDefaultAlertsPath(runTag string) string {
	name := fmt.Sprintf("alerts_%s.json", runTag)
	cwd, err := os.Getwd()
	if err != nil {
		return name
	}
	base := filepath.Base(cwd)
	if base == "src" { // assume repository root is parent
		parent := filepath.Dir(cwd)
		return filepath.Join(parent, name)
	}
	return filepath.Join(cwd, name)
}
