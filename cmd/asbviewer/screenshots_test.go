package main

import (
	"encoding/json"
	"image"
	_ "image/png" // register PNG decoder
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iafilius/AppStartupBench/src/bench"
)

// writeResultLine writes a minimal JSONL envelope suitable for analysis/screenshot rendering.
func writeResultLine(t *testing.T, f *os.File, runTag string, readyMs int64) {
	t.Helper()
	env := &bench.ResultEnvelope{
		Meta: &bench.Meta{
			TimestampUTC:  time.Now().UTC().Format(time.RFC3339Nano),
			RunTag:        runTag,
			Situation:     "Office",
			SchemaVersion: bench.SchemaVersion,
		},
		LaunchResult: &bench.LaunchResult{
			AppName:       "demo",
			Command:       "/usr/bin/demo",
			ReadyLine:     bench.DefaultReadyLine,
			FirstOutputMs: readyMs / 2,
			ReadyMs:       readyMs,
			TotalMs:       readyMs * 2,
			ReadyCount:    1,
		},
	}
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func makeResultsFile(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "results-*.jsonl")
	if err != nil {
		t.Fatalf("create temp results: %v", err)
	}
	for i := 0; i < 3; i++ {
		writeResultLine(t, f, "20250101_000000", 400+int64(i*10))
	}
	for i := 0; i < 3; i++ {
		writeResultLine(t, f, "20250102_000000", 500+int64(i*10))
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close results: %v", err)
	}
	return f.Name()
}

// TestScreenshotWidths ensures all generated screenshots share the headless chart width.
func TestScreenshotWidths(t *testing.T) {
	t.Cleanup(func() { screenshotWidthOverride = 0 })
	screenshotWidthOverride = 1400
	results := makeResultsFile(t)
	outDir := t.TempDir()

	if err := RunScreenshotsMode(results, outDir, "All", 5); err != nil {
		t.Fatalf("RunScreenshotsMode: %v", err)
	}

	expectedW, _ := chartSize(nil)
	checked := 0
	err := filepath.Walk(outDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".png" {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("open %s: %v", path, err)
		}
		defer f.Close()
		img, _, err := image.Decode(f)
		if err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		if w := img.Bounds().Dx(); w != expectedW {
			t.Fatalf("image width mismatch for %s: got %d, want %d", filepath.Base(path), w, expectedW)
		}
		checked++
		return nil
	})
	if err != nil {
		t.Fatalf("walk outDir: %v", err)
	}
	if checked != 4 {
		t.Fatalf("expected 4 PNG screenshots in %s, found %d", outDir, checked)
	}
}

// TestScreenshotWidths_AllowsShrink guards against regressions that reintroduce
// large minimum widths beyond the documented clamp.
func TestScreenshotWidths_AllowsShrink(t *testing.T) {
	t.Cleanup(func() { screenshotWidthOverride = 0 })
	screenshotWidthOverride = 480
	results := makeResultsFile(t)
	outDir := t.TempDir()

	if err := RunScreenshotsMode(results, outDir, "All", 5); err != nil {
		t.Fatalf("RunScreenshotsMode: %v", err)
	}

	expectedW, _ := chartSize(nil)
	path := filepath.Join(outDir, "launch_latency.png")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w := img.Bounds().Dx(); w != expectedW {
		t.Fatalf("image width mismatch: got %d, want %d", w, expectedW)
	}
}

// TestScreenshots_IncludesChartSet ensures every chart in the set lands on disk.
func TestScreenshots_IncludesChartSet(t *testing.T) {
	t.Cleanup(func() { screenshotWidthOverride = 0 })
	screenshotWidthOverride = 800
	results := makeResultsFile(t)
	outDir := t.TempDir()

	if err := RunScreenshotsMode(results, outDir, "", 5); err != nil {
		t.Fatalf("RunScreenshotsMode: %v", err)
	}
	for _, name := range []string{"launch_latency.png", "launch_percentiles.png", "error_rate.png", "launch_phases.png"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("missing screenshot %s: %v", name, err)
		}
	}
}

// TestScreenshotsMissingFile verifies a clear error when the results file is absent.
func TestScreenshotsMissingFile(t *testing.T) {
	err := RunScreenshotsMode(filepath.Join(t.TempDir(), "nope.jsonl"), t.TempDir(), "", 5)
	if err == nil {
		t.Fatalf("expected error for missing results file")
	}
}
