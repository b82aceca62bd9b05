// AppStartupBench main entrypoint.
//
// Two modes:
//  1. Collection mode (default): launch every configured app N times per iteration,
//     writing one JSONL line per launch; after each iteration a rolling analysis
//     (of up to the last 10 batches or iterations so far) is executed and alerts generated.
//  2. Analyze-only mode (--analyze-only): parse existing launch_results.jsonl batches,
//     summarize, compute deltas & alerts, optionally emit JSON report.
//
// Design notes:
// - Batch identity: run_tag (timestamp base + optional _i<iteration>). One iteration = one batch.
// - Alert JSON: always includes an alerts array (may be empty). Automatic naming at repo root if not specified.
// - analyze-only mode never loads the apps config, so historical results can be inspected on a host lacking the apps file.
// - Dependency direction: main -> analysis package for aggregation; bench package for collection only.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/term"

	"github.com/iafilius/AppStartupBench/src/analysis"
	"github.com/iafilius/AppStartupBench/src/bench"
	"github.com/iafilius/AppStartupBench/src/config"
	"github.com/iafilius/AppStartupBench/src/types"
)

// repeatValue returns a slice containing v repeated n times (used to weight per-batch averages
// back into a launch-weighted overall average when constructing an overall aggregate across batches).
func repeatValue(v float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = v
	}
	return out
}

// sanitizeHostname lowercases the hostname and maps anything outside
// [a-z0-9-_] to '-' so it is safe inside a file name.
func sanitizeHostname(hn string) string {
	hn = strings.ToLower(hn)
	var b strings.Builder
	for _, r := range hn {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// classify buckets a percentage delta. invert flips the sign for metrics
// where lower is better (ready time, error rate).
func classify(p float64, invert bool) string {
	v := p
	if invert {
		v = -p
	}
	if v > 10 {
		return "improved"
	}
	if v < -10 {
		return "degraded"
	}
	return "stable"
}

func main() {
	appsPath := flag.String("apps", config.DefaultConfigFile, "Path to the apps YAML file describing the applications under test")
	initCfg := flag.Bool("init", false, "Interactively create an apps YAML file and exit")
	forceInit := flag.Bool("force", false, "Allow --init to overwrite an existing apps file without asking")
	iterations := flag.Int("iterations", 1, "Number of passes over the apps list (one batch per pass)")
	runs := flag.Int("runs", 5, "Measured launches per app per iteration")
	warmups := flag.Int("warmups", -1, "Warmup launches per app before measuring (-1 = config default)")
	cooldownMs := flag.Int("cooldown-ms", -1, "Pause between launches in milliseconds (-1 = config default)")
	parallel := flag.Int("parallel", 1, "Maximum concurrent launches (>1 makes apps compete for CPU and skews ready times)")
	interleave := flag.Bool("interleave", true, "Shuffle the app/run launch order so samples of one app spread across the iteration instead of running back-to-back")
	outFile := flag.String("out", bench.DefaultResultsFile, "Output JSONL file")
	logLevel := flag.String("log-level", "info", "Log level (debug|info|warn|error)")
	launchTimeout := flag.Duration("launch-timeout", 0, "Per-launch total timeout (spawn to exit). 0 = config default")
	situation := flag.String("situation", "Unknown", "Label describing current machine context (e.g. Idle, Loaded, PostBoot, Battery). Added to meta for later comparative analysis")
	readyIncreaseAlert := flag.Float64("ready-increase-alert", 30, "Ready time increase alert threshold percent")
	errorRateAlert := flag.Float64("error-rate-alert", 20, "Error rate alert threshold percent")
	jitterAlert := flag.Float64("jitter-alert", 25, "Jitter alert threshold percent")
	p99p50RatioAlert := flag.Float64("p99p50-ratio-alert", 2.0, "ready p99/p50 ratio alert threshold")
	progressInterval := flag.Duration("progress-interval", 5*time.Second, "Interval for progress logging of the launch pool (0 disables; suppressed when stdout is not a terminal)")
	progressApps := flag.Bool("progress-apps", true, "Include currently launching app names in progress log")
	alertsJSON := flag.String("alerts-json", "", "Path to write structured alert JSON report (optional)")
	analyzeOnly := flag.Bool("analyze-only", false, "If true, perform analysis on existing results and exit")
	analysisBatches := flag.Int("analysis-batches", 10, "Max number of recent batches to analyze when --analyze-only is set")
	finalAnalysisBatches := flag.Int("final-analysis-batches", 0, "If >0 in collection mode, after all iterations perform a final full analysis over last N batches")
	resultsGlob := flag.String("results-glob", "", "Glob of JSONL files to analyze instead of --out in analyze-only mode (supports ** patterns)")
	appFilter := flag.String("app", "", "Restrict analysis to a single app name")
	flag.Parse()

	if *initCfg {
		if err := runInitWizard(*appsPath, *forceInit); err != nil {
			fmt.Printf("[init] %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Hostname placeholder expansion for --out. Users can specify patterns like
	// launch_results_{host}.jsonl and we substitute the current machine hostname.
	if hn, herr := os.Hostname(); herr == nil && hn != "" {
		orig := hn
		sanitized := sanitizeHostname(hn)
		if strings.Contains(*outFile, "{host}") || strings.Contains(*outFile, "%HOST%") || strings.Contains(*outFile, "$HOST") {
			path := *outFile
			path = strings.ReplaceAll(path, "{host}", sanitized)
			path = strings.ReplaceAll(path, "%HOST%", sanitized)
			path = strings.ReplaceAll(path, "$HOST", sanitized)
			*outFile = path
			fmt.Printf("[init] expanded output path with hostname (orig=%s sanitized=%s): %s\n", orig, sanitized, *outFile)
		}
	}

	bench.SetLogLevel(*logLevel)
	bench.SetSituation(*situation)

	th := alertThresholds{
		ReadyIncreasePct: *readyIncreaseAlert,
		ErrorRatePct:     *errorRateAlert,
		JitterPct:        *jitterAlert,
		P99P50Ratio:      *p99p50RatioAlert,
	}

	// Only load the apps config if we are going to collect (not in analyze-only mode)
	var cfg *config.Config
	if !*analyzeOnly {
		var err error
		cfg, err = config.Load(*appsPath)
		if err != nil {
			fmt.Printf("load apps config: %v\n", err)
			os.Exit(1)
		}
		if len(cfg.Apps) == 0 {
			fmt.Println("no apps configured")
			os.Exit(1)
		}
		bench.SetDefaultReadyLine(cfg.Defaults.ReadyLine)
		effTimeout := time.Duration(cfg.Defaults.LaunchTimeoutMs) * time.Millisecond
		if *launchTimeout > 0 {
			effTimeout = *launchTimeout
		}
		bench.SetLaunchTimeout(effTimeout)
		if *warmups < 0 {
			*warmups = cfg.Defaults.Warmups
		}
		if *cooldownMs < 0 {
			*cooldownMs = cfg.Defaults.CooldownMs
		}
	}

	// Init async writer
	bench.InitResultWriter(*outFile)
	defer bench.CloseResultWriter()

	// ANALYSIS ONLY MODE (skip collection)
	if *analyzeOnly {
		defaultAlerts := false
		if *alertsJSON == "" {
			defaultAlerts = true
			fmt.Println("[init] alerts-json not provided; will emit analysis report at repo root: alerts_<last_run_tag>.json")
		}
		batches := *analysisBatches
		if batches < 1 {
			batches = 1
		}
		opts := analysis.AnalyzeOptions{SituationFilter: *situation, AppFilter: *appFilter}
		var summaries []analysis.BatchSummary
		var err error
		if *resultsGlob != "" {
			files, gerr := doublestar.FilepathGlob(*resultsGlob)
			if gerr != nil {
				fmt.Printf("[analysis] bad results glob %q: %v\n", *resultsGlob, gerr)
				os.Exit(1)
			}
			if len(files) == 0 {
				fmt.Printf("[analysis] no files match %q\n", *resultsGlob)
				os.Exit(1)
			}
			sort.Strings(files)
			fmt.Printf("[init] results glob %q matched %d file(s)\n", *resultsGlob, len(files))
			summaries, err = analysis.AnalyzeRecentResultsMulti(files, bench.SchemaVersion, batches, opts)
		} else {
			summaries, err = analysis.AnalyzeRecentResultsFullWithOptions(*outFile, bench.SchemaVersion, batches, opts)
		}
		if err != nil {
			fmt.Printf("[analysis] %v\n", err)
			os.Exit(1)
		}
		alertsPath := *alertsJSON
		if alertsPath == "" && defaultAlerts && len(summaries) > 0 {
			alertsPath = deriveDefaultAlertsPath(summaries[len(summaries)-1].RunTag)
		}
		reportSummaries(summaries, th, alertsPath)
		return
	}

	baseRunTag := time.Now().UTC().Format("20060102_150405")
	defaultAlerts := false
	if *alertsJSON == "" { // user did not supply a path; enable automatic alerts JSON per iteration (repo root preferred)
		defaultAlerts = true
		fmt.Println("[init] alerts-json not provided; will emit per-iteration alert reports at repo root: alerts_<run_tag>.json")
	}
	fmt.Printf("[init] apps=%d iterations=%d runs=%d warmups=%d cooldown_ms=%d parallel=%d out=%s run_tag_base=%s situation=%s go=%s/%s\n",
		len(cfg.Apps), *iterations, *runs, *warmups, *cooldownMs, *parallel, *outFile, baseRunTag, *situation, runtime.GOOS, runtime.GOARCH)
	if *parallel > 1 {
		fmt.Printf("[init] warning: parallel=%d launches compete for CPU/GPU; ready times will read higher than sequential runs\n", *parallel)
	}
	progressEnabled := *progressInterval > 0
	if progressEnabled && !term.IsTerminal(int(os.Stdout.Fd())) {
		bench.Debugf("[init] stdout is not a terminal; suppressing periodic progress output")
		progressEnabled = false
	}
	cooldown := time.Duration(*cooldownMs) * time.Millisecond

	for it := 0; it < *iterations; it++ {
		iterTag := baseRunTag
		if *iterations > 1 {
			iterTag = fmt.Sprintf("%s_i%d", baseRunTag, it+1)
		}
		bench.SetRunTag(iterTag)
		fmt.Printf("[iteration %d/%d] run_tag=%s\n", it+1, *iterations, iterTag)

		// Warmup launches are never recorded; they prime OS page and font
		// caches so measured samples of every app start from the same state.
		if *warmups > 0 {
			for _, app := range cfg.Apps {
				for w := 0; w < *warmups; w++ {
					bench.WarmupApp(app)
					if cooldown > 0 {
						time.Sleep(cooldown)
					}
				}
			}
		}

		type launchTask struct {
			app types.App
			run int
		}
		var tasks []launchTask
		for _, a := range cfg.Apps {
			for r := 0; r < *runs; r++ {
				tasks = append(tasks, launchTask{app: a, run: r + 1})
			}
		}
		if *interleave {
			if bench.GetLogLevel() == bench.LevelDebug && len(tasks) > 0 {
				pre := make([]string, len(tasks))
				for i, t := range tasks {
					pre[i] = fmt.Sprintf("%s#%d", t.app.Name, t.run)
				}
				bench.Debugf("[interleave] launch order before shuffle: %s", strings.Join(pre, ","))
			}
			rand.Shuffle(len(tasks), func(i, j int) { tasks[i], tasks[j] = tasks[j], tasks[i] })
			if bench.GetLogLevel() == bench.LevelDebug && len(tasks) > 0 {
				post := make([]string, len(tasks))
				for i, t := range tasks {
					post[i] = fmt.Sprintf("%s#%d", t.app.Name, t.run)
				}
				bench.Debugf("[interleave] launch order after shuffle: %s", strings.Join(post, ","))
			}
		}

		workCh := make(chan launchTask)
		var wg sync.WaitGroup
		workerCount := *parallel
		if workerCount < 1 {
			workerCount = 1
		}
		var inFlight int32
		var completed int32
		totalTasks := len(tasks)
		activeApps := make([]string, workerCount)
		var activeMu sync.Mutex
		stopProgress := make(chan struct{})
		if progressEnabled {
			go func(iter int) {
				ticker := time.NewTicker(*progressInterval)
				defer ticker.Stop()
				lastComp := int32(0)
				lastChange := time.Now()
				warned := false
				for {
					select {
					case <-stopProgress:
						return
					case <-ticker.C:
						inF := atomic.LoadInt32(&inFlight)
						comp := atomic.LoadInt32(&completed)
						remaining := totalTasks - int(comp) - int(inF)
						if remaining < 0 {
							remaining = 0
						}
						if comp != lastComp {
							lastComp = comp
							lastChange = time.Now()
							warned = false
						}
						if *progressApps {
							activeMu.Lock()
							names := []string{}
							for _, n := range activeApps {
								if n != "" {
									names = append(names, n)
								}
							}
							activeMu.Unlock()
							fmt.Printf("[iteration %d progress] workers_busy=%d/%d remaining=%d done=%d/%d active=[%s]\n", iter, inF, workerCount, remaining, comp, totalTasks, strings.Join(names, ","))
						} else {
							fmt.Printf("[iteration %d progress] workers_busy=%d/%d remaining=%d done=%d/%d\n", iter, inF, workerCount, remaining, comp, totalTasks)
						}
						// Stall heuristic: one launch left, one worker busy for >2 progress intervals without completion
						if !warned && remaining == 0 && int(comp) < totalTasks && inF == 1 {
							stuckFor := time.Since(lastChange)
							if stuckFor >= 2**progressInterval {
								fmt.Printf("[iteration %d warn] potential stuck final launch (no completion for %s); if persistent consider lowering --launch-timeout.\n", iter, stuckFor.Truncate(time.Second))
								warned = true
							}
						}
					}
				}
			}(it + 1)
		}
		for w := 0; w < workerCount; w++ {
			wg.Add(1)
			go func(workerID int) {
				defer wg.Done()
				for task := range workCh {
					atomic.AddInt32(&inFlight, 1)
					if *progressApps {
						activeMu.Lock()
						activeApps[workerID] = fmt.Sprintf("%s#%d", task.app.Name, task.run)
						activeMu.Unlock()
					}
					bench.MeasureApp(task.app)
					if cooldown > 0 {
						time.Sleep(cooldown)
					}
					if *progressApps {
						activeMu.Lock()
						activeApps[workerID] = ""
						activeMu.Unlock()
					}
					atomic.AddInt32(&inFlight, -1)
					atomic.AddInt32(&completed, 1)
				}
			}(w)
		}
		for _, t := range tasks {
			workCh <- t
		}
		close(workCh)
		wg.Wait()
		if progressEnabled {
			close(stopProgress)
		}
		fmt.Printf("[iteration %d] complete (launches=%d)\n", it+1, len(tasks))

		// Run analysis after each iteration (consider last N batches up to iterations so far, capped at 10)
		batchesToParse := *iterations
		if batchesToParse > 10 {
			batchesToParse = 10
		}
		fmt.Printf("[iteration %d analysis] performing rolling analysis over last %d batch(es) including current iteration\n", it+1, batchesToParse)
		alertsPath := *alertsJSON
		if defaultAlerts { // derive unique filename incorporating the iteration tag, prefer repo root if running inside src
			alertsPath = deriveDefaultAlertsPath(iterTag)
		}
		performAnalysis(*outFile, bench.SchemaVersion, batchesToParse, th, alertsPath, *situation, *appFilter)
	}

	// Optional final full analysis after all iterations if requested
	if *finalAnalysisBatches > 0 {
		fmt.Printf("[final analysis] requested --final-analysis-batches=%d; performing analysis over last %d batch(es)\n", *finalAnalysisBatches, *finalAnalysisBatches)
		performAnalysis(*outFile, bench.SchemaVersion, *finalAnalysisBatches, th, *alertsJSON, *situation, *appFilter)
	}
}

// performAnalysis loads up to n recent batches from path and evaluates alert
// conditions comparing newest vs aggregate of previous. Used in collection
// mode after each iteration.
func performAnalysis(path string, schemaVersion, n int, th alertThresholds, alertsJSONPath, situationFilter, appFilter string) {
	fmt.Printf("[analysis start] evaluating up to last %d batch(es) from %s\n", n, path)
	summaries, err := analysis.AnalyzeRecentResultsFullWithOptions(path, schemaVersion, n, analysis.AnalyzeOptions{SituationFilter: situationFilter, AppFilter: appFilter})
	if err != nil {
		fmt.Printf("[analysis] %v\n", err)
		return
	}
	reportSummaries(summaries, th, alertsJSONPath)
}

// reportSummaries prints per-batch lines, the launch-weighted overall aggregate
// and the newest-vs-previous comparison, then evaluates alert thresholds.
func reportSummaries(summaries []analysis.BatchSummary, th alertThresholds, alertsJSONPath string) {
	for _, s := range summaries {
		fmt.Println(batchLine(s))
	}
	if len(summaries) == 0 {
		fmt.Println("[analysis] no batches found")
		return
	}
	if len(summaries) > 1 {
		printOverall(summaries)
	}
	if len(summaries) == 1 {
		last := summaries[0]
		fmt.Printf("[batch-compare %s] only one batch available\n", last.RunTag)
		if alertsJSONPath != "" {
			writeAlertJSON(alertsJSONPath, bench.SchemaVersion, last, nil, nil, th, 1)
		}
		return
	}
	last := summaries[len(summaries)-1]
	readyDeltaPct, errRateDelta, prevAvgReady, prevErrRate := analysis.CompareLastVsPrevious(summaries)
	fmt.Printf("[batch-compare current=%s prev_batches=%d] avg_ready=%.1f (%.1f%% %s vs %.1f) error_rate=%.1f%% (%+.1fpt vs %.1f%%)\n",
		last.RunTag, len(summaries)-1, last.AvgReadyMs, readyDeltaPct, classify(readyDeltaPct, true), prevAvgReady, last.ErrorRatePct, errRateDelta, prevErrRate)
	alerts := evaluateAlerts(last, readyDeltaPct, th)
	if len(alerts) == 0 {
		fmt.Println("[alert none] thresholds not exceeded")
	} else {
		for _, a := range alerts {
			fmt.Printf("[alert %s] batch=%s\n", a, last.RunTag)
		}
	}
	if alertsJSONPath != "" {
		comp := &comparisonSummary{
			PrevAvgReadyMs:   prevAvgReady,
			ReadyDeltaPct:    readyDeltaPct,
			PrevErrorRatePct: prevErrRate,
			ErrorRateDeltaPt: errRateDelta,
			ErrorRatePct:     last.ErrorRatePct,
		}
		writeAlertJSON(alertsJSONPath, bench.SchemaVersion, last, comp, alerts, th, len(summaries))
	}
}

// evaluateAlerts returns the alert strings for the newest batch. A threshold
// of 0 disables its check.
func evaluateAlerts(last analysis.BatchSummary, readyDeltaPct float64, th alertThresholds) []string {
	alerts := []string{}
	if th.ReadyIncreasePct > 0 && readyDeltaPct > 0 && readyDeltaPct >= th.ReadyIncreasePct {
		alerts = append(alerts, fmt.Sprintf("ready_increase %.1f%% >= %.1f%%", readyDeltaPct, th.ReadyIncreasePct))
	}
	if th.ErrorRatePct > 0 && last.ErrorRatePct >= th.ErrorRatePct {
		alerts = append(alerts, fmt.Sprintf("error_rate %.1f%% >= %.1f%%", last.ErrorRatePct, th.ErrorRatePct))
	}
	if th.JitterPct > 0 && last.JitterPct >= th.JitterPct {
		alerts = append(alerts, fmt.Sprintf("jitter %.1f%% >= %.1f%%", last.JitterPct, th.JitterPct))
	}
	if th.P99P50Ratio > 0 && last.P99P50Ratio >= th.P99P50Ratio {
		alerts = append(alerts, fmt.Sprintf("p99_p50_ratio %.2f >= %.2f", last.P99P50Ratio, th.P99P50Ratio))
	}
	return alerts
}

// batchLine renders the one-line per-batch summary shared by both modes.
func batchLine(s analysis.BatchSummary) string {
	line := fmt.Sprintf("[batch %s] (per-batch) launches=%d dur=%dms avg_ready=%.1f median=%.1f p50=%.1f p90=%.1f p95=%.1f p99=%.1f p99/p50=%.2f jitter=%.1f%% first_out=%.1f total=%.1f errors=%d timeouts=%d",
		s.RunTag, s.Lines, s.BatchDurationMs, s.AvgReadyMs, s.MedianReadyMs, s.P50ReadyMs, s.P90ReadyMs, s.P95ReadyMs, s.P99ReadyMs, s.P99P50Ratio, s.JitterPct, s.AvgFirstOutputMs, s.AvgTotalMs, s.ErrorLines, s.TimeoutLines)
	if s.Situation != "" {
		line += " situation=" + s.Situation
	}
	names := make([]string, 0, len(s.Apps))
	for name := range s.Apps {
		names = append(names, name)
	}
	sort.Strings(names)
	shown := names
	if len(shown) > 3 {
		shown = shown[:3]
	}
	for _, name := range shown {
		a := s.Apps[name]
		line += fmt.Sprintf(" app(%s n=%d avg=%.0f p95=%.0f)", name, a.Launches, a.AvgReadyMs, a.P95ReadyMs)
	}
	if len(names) > len(shown) {
		line += fmt.Sprintf(" +%d more apps", len(names)-len(shown))
	}
	return line
}

// printOverall emits a launch-weighted aggregate across batches so short
// batches do not dominate the averages.
func printOverall(summaries []analysis.BatchSummary) {
	var totalLines, errCnt, timeoutCnt int
	var readys, firsts, totals, ratios, jitters []float64
	for _, s := range summaries {
		if s.Lines == 0 {
			continue
		}
		totalLines += s.Lines
		errCnt += s.ErrorLines
		timeoutCnt += s.TimeoutLines
		if s.AvgReadyMs > 0 {
			readys = append(readys, repeatValue(s.AvgReadyMs, s.Lines)...)
		}
		if s.AvgFirstOutputMs > 0 {
			firsts = append(firsts, repeatValue(s.AvgFirstOutputMs, s.Lines)...)
		}
		if s.AvgTotalMs > 0 {
			totals = append(totals, repeatValue(s.AvgTotalMs, s.Lines)...)
		}
		if s.P99P50Ratio > 0 {
			ratios = append(ratios, repeatValue(s.P99P50Ratio, s.Lines)...)
		}
		if s.JitterPct > 0 {
			jitters = append(jitters, repeatValue(s.JitterPct, s.Lines)...)
		}
	}
	ov := func(a []float64) float64 {
		if len(a) == 0 {
			return 0
		}
		sum := 0.0
		for _, v := range a {
			sum += v
		}
		return sum / float64(len(a))
	}
	errRate := 0.0
	if totalLines > 0 {
		errRate = float64(errCnt) / float64(totalLines) * 100
	}
	fmt.Printf("[overall across %d batches] launches=%d avg_ready=%.1f first_out=%.1f total=%.1f p99/p50=%.2f jitter=%.1f%% errors=%d (%.1f%%) timeouts=%d\n",
		len(summaries), totalLines, ov(readys), ov(firsts), ov(totals), ov(ratios), ov(jitters), errCnt, errRate, timeoutCnt)
}
