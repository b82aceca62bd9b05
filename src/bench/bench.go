// Package bench launches GUI applications in benchmark mode and measures
// how long they take to become ready. Each launch produces one JSONL
// envelope appended to the results file by an async writer.
package bench

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/iafilius/AppStartupBench/src/types"
)

// SchemaVersion identifies the envelope layout.
// v1: initial launch sample format (first_output_ms, ready_ms, total_ms).
const SchemaVersion = 1

// DefaultResultsFile is the default JSONL output path.
const DefaultResultsFile = "launch_results.jsonl"

// DefaultReadyLine is expected on stdout when an app finished starting up.
const DefaultReadyLine = "ready"

// BenchmarkEnv is set to "1" in the environment of every launched app so
// the app runs its startup-probe path instead of staying interactive.
const BenchmarkEnv = "BENCHMARK"

// stderrTailLimit caps how much captured stderr is kept on failed samples.
const stderrTailLimit = 512

var (
	launchTimeout    = 30 * time.Second
	defaultReadyLine = DefaultReadyLine
	currentRunTag    string
	currentSituation string
)

// SetLaunchTimeout bounds a single launch from spawn to exit.
func SetLaunchTimeout(d time.Duration) {
	if d > 0 {
		launchTimeout = d
	}
}

// SetDefaultReadyLine overrides the ready line used when an app doesn't set one.
func SetDefaultReadyLine(s string) {
	if strings.TrimSpace(s) != "" {
		defaultReadyLine = strings.TrimSpace(s)
	}
}

// SetRunTag sets the batch tag stamped into every envelope's meta.
func SetRunTag(tag string) { currentRunTag = tag }

// SetSituation labels the measurement context (e.g. "idle", "compiling").
func SetSituation(s string) { currentSituation = s }

// LaunchResult is the measurement of one application launch.
type LaunchResult struct {
	SampleID      string   `json:"sample_id,omitempty"`
	AppName       string   `json:"app_name"`
	Command       string   `json:"command"`
	Args          []string `json:"args,omitempty"`
	ReadyLine     string   `json:"ready_line"`
	FirstOutputMs int64    `json:"first_output_ms"`
	ReadyMs       int64    `json:"ready_ms"`
	TotalMs       int64    `json:"total_ms"`
	ExitCode      int      `json:"exit_code"`
	ReadyCount    int      `json:"ready_count"`
	StdoutBytes   int64    `json:"stdout_bytes"`
	StderrBytes   int64    `json:"stderr_bytes"`
	StderrTail    string   `json:"stderr_tail,omitempty"`
	TimedOut      bool     `json:"timed_out,omitempty"`
	LaunchError   string   `json:"launch_error,omitempty"`
}

// OK reports whether the sample is clean: exited zero, ready seen exactly once.
func (r *LaunchResult) OK() bool {
	return r != nil && r.LaunchError == "" && r.ReadyCount == 1 && r.ExitCode == 0
}

var sampleEntropy = ulid.Monotonic(rand.Reader, 0)

func newSampleID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), sampleEntropy)
	if err != nil {
		return ""
	}
	return id.String()
}

// readyLineFor resolves the per-app ready line, falling back to the default.
func readyLineFor(app types.App) string {
	if s := strings.TrimSpace(app.ReadyLine); s != "" {
		return s
	}
	return defaultReadyLine
}

// MeasureApp launches the app once with BENCHMARK=1, waits for it to print
// its ready line and exit, and records the timings. Failures are recorded in
// the returned result rather than returned as an error; the envelope is
// handed to the async writer when one is initialized.
func MeasureApp(app types.App) *LaunchResult { return measureApp(app, true) }

// WarmupApp performs one unrecorded launch so measured samples start with OS
// page and font caches already primed.
func WarmupApp(app types.App) *LaunchResult { return measureApp(app, false) }

func measureApp(app types.App, record bool) *LaunchResult {
	ready := readyLineFor(app)
	res := &LaunchResult{
		SampleID:  newSampleID(),
		AppName:   app.Name,
		Command:   app.Command,
		Args:      app.Args,
		ReadyLine: ready,
		ExitCode:  -1,
	}
	verb := "launch"
	if !record {
		verb = "warmup"
	}
	if getLevel() == LevelDebug {
		Debugf("[%s] %s %s %s", app.Name, verb, app.Command, strings.Join(app.Args, " "))
	} else {
		Infof("[%s] %s", app.Name, verb)
	}
	defer TimeTrack(time.Now(), fmt.Sprintf("[%s] %s", app.Name, verb))

	ctx, cancel := context.WithTimeout(context.Background(), launchTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, app.Command, app.Args...)
	cmd.Env = append(os.Environ(), BenchmarkEnv+"=1")
	for k, v := range app.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		res.LaunchError = fmt.Sprintf("stdout pipe: %v", err)
		finishSample(res, &stderrBuf, record)
		return res
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		res.LaunchError = fmt.Sprintf("start: %v", err)
		finishSample(res, &stderrBuf, record)
		return res
	}

	// The probe exits on its own after printing the ready line, so a plain
	// scan-to-EOF is enough; on timeout CommandContext kills the process and
	// the pipe drains to EOF anyway.
	firstSeen := false
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		now := time.Now()
		res.StdoutBytes += int64(len(line)) + 1
		if !firstSeen {
			firstSeen = true
			res.FirstOutputMs = now.Sub(start).Milliseconds()
		}
		if line == ready {
			res.ReadyCount++
			if res.ReadyCount == 1 {
				res.ReadyMs = now.Sub(start).Milliseconds()
			}
		}
	}
	if serr := sc.Err(); serr != nil && res.LaunchError == "" {
		res.LaunchError = fmt.Sprintf("stdout read: %v", serr)
	}

	werr := cmd.Wait()
	res.TotalMs = time.Since(start).Milliseconds()
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.LaunchError = fmt.Sprintf("timeout after %s", launchTimeout)
	} else if werr != nil && res.LaunchError == "" {
		res.LaunchError = fmt.Sprintf("wait: %v", werr)
	}
	if res.ReadyCount == 0 && res.LaunchError == "" {
		res.LaunchError = "exited without ready line"
	} else if res.ReadyCount > 1 && res.LaunchError == "" {
		res.LaunchError = fmt.Sprintf("ready line seen %d times", res.ReadyCount)
	}

	finishSample(res, &stderrBuf, record)
	return res
}

// finishSample fills stderr fields, logs the outcome and, for recorded
// samples, enqueues the envelope. Warmup launches are never persisted.
func finishSample(res *LaunchResult, stderrBuf *bytes.Buffer, record bool) {
	res.StderrBytes = int64(stderrBuf.Len())
	if res.LaunchError != "" {
		res.StderrTail = tailString(stderrBuf.String(), stderrTailLimit)
		Warnf("[%s] failed: %s (exit=%d total=%dms)", res.AppName, res.LaunchError, res.ExitCode, res.TotalMs)
	} else if record {
		Infof("[%s] done first_output=%dms ready=%dms total=%dms exit=%d", res.AppName, res.FirstOutputMs, res.ReadyMs, res.TotalMs, res.ExitCode)
	} else {
		Debugf("[%s] warmup done total=%dms", res.AppName, res.TotalMs)
	}
	if !record {
		return
	}
	writeResult(&ResultEnvelope{Meta: gatherMeta(), LaunchResult: res})
}

// tailString keeps the last max bytes of s, trimmed of trailing whitespace.
func tailString(s string, max int) string {
	s = strings.TrimRight(s, "\n\r\t ")
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
