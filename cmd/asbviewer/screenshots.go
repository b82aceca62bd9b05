package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/iafilius/AppStartupBench/src/analysis"
	"github.com/iafilius/AppStartupBench/src/bench"
)

// RunScreenshotsMode renders the chart set and writes the PNGs under outDir.
// It runs headlessly without creating a UI window.
func RunScreenshotsMode(filePath, outDir, situation string, batches int) error {
	if filePath == "" {
		filePath = bench.DefaultResultsFile
	}
	if batches <= 0 {
		batches = 50
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create out dir: %w", err)
	}
	sums, err := analysis.AnalyzeRecentResultsFull(filePath, bench.SchemaVersion, batches, "")
	if err != nil {
		return err
	}
	st := &uiState{
		filePath:    filePath,
		batchesN:    batches,
		xAxisMode:   "batch",
		yScaleMode:  "absolute",
		latencyUnit: "ms",
		showHints:   true,
		situation:   normalizeSituationPick(strings.TrimSpace(situation)),
	}
	st.summaries = sums

	toRender := []struct {
		name string
		fn   func(*uiState) image.Image
	}{
		{"launch_latency.png", renderLatencyChart},
		{"launch_percentiles.png", renderPercentilesChart},
		{"error_rate.png", renderErrorRateChart},
		{"launch_phases.png", renderPhasesChart},
	}

	for _, item := range toRender {
		img := item.fn(st)
		if img == nil {
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("png encode %s: %w", item.name, err)
		}
		outPath := filepath.Join(outDir, item.name)
		if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
	}
	fmt.Printf("[viewer] wrote %d screenshot(s) to %s\n", len(toRender), outDir)
	return nil
}
