// Package analysis aggregates launch samples from JSONL results files into
// per-batch summaries keyed by run_tag.
package analysis

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/iafilius/AppStartupBench/src/bench"
)

// AppSummary aggregates the launches of a single app within one batch.
type AppSummary struct {
	AppName          string  `json:"app_name"`
	Launches         int     `json:"launches"`
	ErrorLines       int     `json:"error_lines"`
	AvgReadyMs       float64 `json:"avg_ready_ms"`
	MedianReadyMs    float64 `json:"median_ready_ms"`
	MinReadyMs       float64 `json:"min_ready_ms,omitempty"`
	MaxReadyMs       float64 `json:"max_ready_ms,omitempty"`
	P50ReadyMs       float64 `json:"ready_p50_ms,omitempty"`
	P90ReadyMs       float64 `json:"ready_p90_ms,omitempty"`
	P95ReadyMs       float64 `json:"ready_p95_ms,omitempty"`
	P99ReadyMs       float64 `json:"ready_p99_ms,omitempty"`
	AvgFirstOutputMs float64 `json:"avg_first_output_ms"`
	AvgTotalMs       float64 `json:"avg_total_ms"`
	JitterPct        float64 `json:"jitter_pct,omitempty"`
}

// BatchSummary captures aggregate metrics for one run_tag batch.
type BatchSummary struct {
	RunTag           string  `json:"run_tag"`
	Situation        string  `json:"situation,omitempty"`
	Lines            int     `json:"lines"`
	ErrorLines       int     `json:"error_lines"`
	ErrorRatePct     float64 `json:"error_rate_pct"`
	TimeoutLines     int     `json:"timeout_lines,omitempty"`
	AvgReadyMs       float64 `json:"avg_ready_ms"`
	MedianReadyMs    float64 `json:"median_ready_ms"`
	MinReadyMs       float64 `json:"min_ready_ms,omitempty"`
	MaxReadyMs       float64 `json:"max_ready_ms,omitempty"`
	P50ReadyMs       float64 `json:"ready_p50_ms,omitempty"`
	P90ReadyMs       float64 `json:"ready_p90_ms,omitempty"`
	P95ReadyMs       float64 `json:"ready_p95_ms,omitempty"`
	P99ReadyMs       float64 `json:"ready_p99_ms,omitempty"`
	P99P50Ratio      float64 `json:"ready_p99_p50_ratio,omitempty"`
	AvgFirstOutputMs float64 `json:"avg_first_output_ms"`
	AvgTotalMs       float64 `json:"avg_total_ms"`
	JitterPct        float64 `json:"jitter_pct,omitempty"`
	BatchDurationMs  int64   `json:"batch_duration_ms,omitempty"`
	// Host and system diagnostics (best-effort; latest seen in batch)
	Hostname      string  `json:"hostname,omitempty"`
	NumCPU        int     `json:"num_cpu,omitempty"`
	LoadAvg1      float64 `json:"load_avg_1,omitempty"`
	DisplayServer string  `json:"display_server,omitempty"`
	// Per-app breakdown, keyed by app name
	Apps map[string]*AppSummary `json:"apps,omitempty"`
}

// AnalyzeOptions controls filtering during the scan phase.
type AnalyzeOptions struct {
	SituationFilter string
	AppFilter       string
}

// rec is the lightweight per-line extract kept for aggregation. Full structs
// are not retained so large results files stay cheap to analyze.
type rec struct {
	runTag     string
	situation  string
	appName    string
	timestamp  time.Time
	readyMs    float64
	firstOutMs float64
	totalMs    float64
	clean      bool
	timedOut   bool
	// meta diagnostics
	hostname      string
	numCPU        int
	load1         float64
	displayServer string
}

// Launch sample lines are small; anything near this size is garbage and
// gets skipped.
const maxLineBytes = 4 * 1024 * 1024

// scanFile extracts one rec per valid envelope line matching the requested
// schema version and filters. Malformed lines, wrong schema versions and
// lines without a run_tag are skipped.
func scanFile(path string, schemaVersion int, opts AnalyzeOptions) ([]rec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reader := bufio.NewReader(f)
	var records []rec
readLoop:
	for {
		// Accumulate one logical line (may span multiple internal buffers)
		var line []byte
		for {
			part, rerr := reader.ReadBytes('\n')
			if len(part) > 0 {
				if len(line)+len(part) > maxLineBytes {
					return nil, fmt.Errorf("line too large: %d bytes exceeds limit %d in %s", len(line)+len(part), maxLineBytes, path)
				}
				line = append(line, part...)
			}
			if rerr == nil {
				break // finished one line with newline
			}
			if errors.Is(rerr, io.EOF) {
				// Handle final line without newline
				if len(line) == 0 {
					break readLoop
				}
				break
			}
			if errors.Is(rerr, bufio.ErrBufferFull) {
				continue
			}
			fmt.Printf("[analysis] read warning: %v (file=%s)\n", rerr, path)
			if len(line) == 0 {
				break readLoop
			}
			break
		}
		var env bench.ResultEnvelope
		if err := json.Unmarshal(line, &env); err != nil || env.Meta == nil || env.LaunchResult == nil {
			continue
		}
		if env.Meta.SchemaVersion != schemaVersion {
			continue
		}
		if env.Meta.RunTag == "" { // require explicit run_tag; skip otherwise
			continue
		}
		if opts.SituationFilter != "" && !strings.EqualFold(env.Meta.Situation, opts.SituationFilter) {
			continue
		}
		lr := env.LaunchResult
		if opts.AppFilter != "" && !strings.EqualFold(lr.AppName, opts.AppFilter) {
			continue
		}
		var ts time.Time
		if env.Meta.TimestampUTC != "" {
			if parsed, perr := time.Parse(time.RFC3339Nano, env.Meta.TimestampUTC); perr == nil {
				ts = parsed
			}
		}
		r := rec{
			runTag:     env.Meta.RunTag,
			situation:  env.Meta.Situation,
			appName:    lr.AppName,
			timestamp:  ts,
			readyMs:    float64(lr.ReadyMs),
			firstOutMs: float64(lr.FirstOutputMs),
			totalMs:    float64(lr.TotalMs),
			clean:      lr.OK(),
			timedOut:   lr.TimedOut,
		}
		if env.Meta.Hostname != "" {
			r.hostname = env.Meta.Hostname
		}
		if env.Meta.NumCPU > 0 {
			r.numCPU = env.Meta.NumCPU
		}
		if env.Meta.LoadAvg1 > 0 {
			r.load1 = env.Meta.LoadAvg1
		}
		if env.Meta.DisplayServer != "" {
			r.displayServer = env.Meta.DisplayServer
		}
		records = append(records, r)
	}
	return records, nil
}

// AnalyzeRecentResults parses the results file and computes batch summaries.
// MaxBatches limits how many recent batches are returned (0 or negative -> default 10).
func AnalyzeRecentResults(path string, schemaVersion, MaxBatches int) ([]BatchSummary, error) {
	return AnalyzeRecentResultsFull(path, schemaVersion, MaxBatches, "")
}

// AnalyzeRecentResultsFull adds a situation filter on top of AnalyzeRecentResults.
func AnalyzeRecentResultsFull(path string, schemaVersion, MaxBatches int, situationFilter string) ([]BatchSummary, error) {
	return AnalyzeRecentResultsFullWithOptions(path, schemaVersion, MaxBatches, AnalyzeOptions{SituationFilter: situationFilter})
}

// AnalyzeRecentResultsFullWithOptions parses one results file and aggregates
// per-batch metrics with filter options.
func AnalyzeRecentResultsFullWithOptions(path string, schemaVersion, MaxBatches int, opts AnalyzeOptions) ([]BatchSummary, error) {
	if opts.SituationFilter != "" {
		fmt.Printf("[analysis] reading results from %s (schema_version=%d, max_batches=%d, situation=\"%s\")\n", path, schemaVersion, MaxBatches, opts.SituationFilter)
	} else {
		fmt.Printf("[analysis] reading results from %s (schema_version=%d, max_batches=%d, situation=ALL)\n", path, schemaVersion, MaxBatches)
	}
	records, err := scanFile(path, schemaVersion, opts)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no records")
	}
	return aggregate(records, MaxBatches)
}

// AnalyzeRecentResultsMulti merges several results files (e.g. per-host
// outputs) before aggregating. Unreadable files are skipped with a warning so
// one stale glob match doesn't sink the whole analysis.
func AnalyzeRecentResultsMulti(paths []string, schemaVersion, MaxBatches int, opts AnalyzeOptions) ([]BatchSummary, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input files")
	}
	var records []rec
	for _, p := range paths {
		fmt.Printf("[analysis] reading results from %s (schema_version=%d)\n", p, schemaVersion)
		rs, err := scanFile(p, schemaVersion, opts)
		if err != nil {
			fmt.Printf("[analysis] skipping %s: %v\n", p, err)
			continue
		}
		records = append(records, rs...)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no records")
	}
	return aggregate(records, MaxBatches)
}

// aggregate groups records by run_tag, trims to the most recent MaxBatches
// and computes the summary metrics per batch.
func aggregate(records []rec, MaxBatches int) ([]BatchSummary, error) {
	// Group by run_tag, preserving first-seen order of unique tags; tags are
	// timestamp-based so a lexical sort yields chronological order.
	batches := map[string][]rec{}
	var order []string
	for _, r := range records {
		if r.runTag == "" { // filtered earlier but guard regardless
			continue
		}
		if _, ok := batches[r.runTag]; !ok {
			order = append(order, r.runTag)
		}
		batches[r.runTag] = append(batches[r.runTag], r)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("no batches")
	}
	sort.Strings(order)
	if MaxBatches <= 0 {
		MaxBatches = 10
	}
	if len(order) > MaxBatches {
		order = order[len(order)-MaxBatches:]
	}

	avg := func(a []float64) float64 {
		if len(a) == 0 {
			return 0
		}
		s := 0.0
		for _, v := range a {
			s += v
		}
		return s / float64(len(a))
	}
	minVal := func(a []float64) float64 {
		if len(a) == 0 {
			return 0
		}
		m := a[0]
		for _, v := range a[1:] {
			if v < m {
				m = v
			}
		}
		return m
	}
	maxVal := func(a []float64) float64 {
		if len(a) == 0 {
			return 0
		}
		m := a[0]
		for _, v := range a[1:] {
			if v > m {
				m = v
			}
		}
		return m
	}
	median := func(a []float64) float64 {
		if len(a) == 0 {
			return 0
		}
		cp := append([]float64(nil), a...)
		sort.Float64s(cp)
		return cp[len(cp)/2]
	}
	percentile := func(a []float64, p float64) float64 {
		if len(a) == 0 {
			return 0
		}
		cp := append([]float64(nil), a...)
		sort.Float64s(cp)
		if p <= 0 {
			return cp[0]
		}
		if p >= 100 {
			return cp[len(cp)-1]
		}
		// nearest-rank method
		idx := int(math.Ceil(p/100*float64(len(cp)))) - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(cp) {
			idx = len(cp) - 1
		}
		return cp[idx]
	}
	jitter := func(a []float64) float64 {
		if len(a) < 2 {
			return 0
		}
		m := avg(a)
		if m <= 0 {
			return 0
		}
		var ss float64
		for _, v := range a {
			d := v - m
			ss += d * d
		}
		return math.Sqrt(ss/float64(len(a))) / m * 100
	}

	var summaries []BatchSummary
	for _, tag := range order {
		recs := batches[tag]
		batchSituation := ""
		var minTS, maxTS time.Time
		var readys, firstOuts, totals []float64
		errorLines := 0
		timeoutLines := 0
		hostname := ""
		numCPU := 0
		load1 := 0.0
		displayServer := ""
		appNames := map[string]struct{}{}
		for _, r := range recs {
			if batchSituation == "" && r.situation != "" {
				batchSituation = r.situation
			}
			if !r.timestamp.IsZero() {
				if minTS.IsZero() || r.timestamp.Before(minTS) {
					minTS = r.timestamp
				}
				if maxTS.IsZero() || r.timestamp.After(maxTS) {
					maxTS = r.timestamp
				}
			}
			if r.hostname != "" {
				hostname = r.hostname
			}
			if r.numCPU > 0 {
				numCPU = r.numCPU
			}
			if r.load1 > 0 {
				load1 = r.load1
			}
			if r.displayServer != "" {
				displayServer = r.displayServer
			}
			if r.appName != "" {
				appNames[r.appName] = struct{}{}
			}
			if r.timedOut {
				timeoutLines++
			}
			if !r.clean {
				errorLines++
				continue
			}
			readys = append(readys, r.readyMs)
			firstOuts = append(firstOuts, r.firstOutMs)
			totals = append(totals, r.totalMs)
		}

		bs := BatchSummary{
			RunTag:           tag,
			Situation:        batchSituation,
			Lines:            len(recs),
			ErrorLines:       errorLines,
			TimeoutLines:     timeoutLines,
			AvgReadyMs:       avg(readys),
			MedianReadyMs:    median(readys),
			MinReadyMs:       minVal(readys),
			MaxReadyMs:       maxVal(readys),
			P50ReadyMs:       percentile(readys, 50),
			P90ReadyMs:       percentile(readys, 90),
			P95ReadyMs:       percentile(readys, 95),
			P99ReadyMs:       percentile(readys, 99),
			AvgFirstOutputMs: avg(firstOuts),
			AvgTotalMs:       avg(totals),
			JitterPct:        jitter(readys),
			Hostname:         hostname,
			NumCPU:           numCPU,
			LoadAvg1:         load1,
			DisplayServer:    displayServer,
		}
		if len(recs) > 0 {
			bs.ErrorRatePct = float64(errorLines) / float64(len(recs)) * 100
		}
		if bs.P50ReadyMs > 0 {
			bs.P99P50Ratio = bs.P99ReadyMs / bs.P50ReadyMs
		}
		if !minTS.IsZero() && !maxTS.IsZero() {
			bs.BatchDurationMs = maxTS.Sub(minTS).Milliseconds()
		}

		// per-app breakdown over the same records
		buildApp := func(name string) *AppSummary {
			var rs, fs, ts []float64
			launches := 0
			errs := 0
			for _, r := range recs {
				if r.appName != name {
					continue
				}
				launches++
				if !r.clean {
					errs++
					continue
				}
				rs = append(rs, r.readyMs)
				fs = append(fs, r.firstOutMs)
				ts = append(ts, r.totalMs)
			}
			if launches == 0 {
				return nil
			}
			return &AppSummary{
				AppName:          name,
				Launches:         launches,
				ErrorLines:       errs,
				AvgReadyMs:       avg(rs),
				MedianReadyMs:    median(rs),
				MinReadyMs:       minVal(rs),
				MaxReadyMs:       maxVal(rs),
				P50ReadyMs:       percentile(rs, 50),
				P90ReadyMs:       percentile(rs, 90),
				P95ReadyMs:       percentile(rs, 95),
				P99ReadyMs:       percentile(rs, 99),
				AvgFirstOutputMs: avg(fs),
				AvgTotalMs:       avg(ts),
				JitterPct:        jitter(rs),
			}
		}
		if len(appNames) > 0 {
			bs.Apps = map[string]*AppSummary{}
			for name := range appNames {
				if as := buildApp(name); as != nil {
					bs.Apps[name] = as
				}
			}
		}
		summaries = append(summaries, bs)
	}
	return summaries, nil
}

// AppNames returns the sorted union of app names across the given summaries.
func AppNames(summaries []BatchSummary) []string {
	set := map[string]struct{}{}
	for _, s := range summaries {
		for name := range s.Apps {
			set[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CompareLastVsPrevious returns the ready-time delta percentage and error-rate
// delta (in points) of the last batch vs the average of all previous batches.
func CompareLastVsPrevious(summaries []BatchSummary) (readyDeltaPct, errRateDelta float64, prevAvgReady, prevErrRate float64) {
	if len(summaries) < 2 {
		return 0, 0, 0, 0
	}
	last := summaries[len(summaries)-1]
	for i := 0; i < len(summaries)-1; i++ {
		prevAvgReady += summaries[i].AvgReadyMs
		prevErrRate += summaries[i].ErrorRatePct
	}
	prevCount := float64(len(summaries) - 1)
	prevAvgReady /= prevCount
	prevErrRate /= prevCount
	if prevAvgReady > 0 {
		readyDeltaPct = (last.AvgReadyMs - prevAvgReady) / prevAvgReady * 100
	}
	errRateDelta = last.ErrorRatePct - prevErrRate
	if math.IsNaN(readyDeltaPct) {
		readyDeltaPct = 0
	}
	if math.IsNaN(errRateDelta) {
		errRateDelta = 0
	}
	return
}
