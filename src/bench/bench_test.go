package bench

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/iafilius/AppStartupBench/src/types"
)

// shApp returns an app under test backed by a shell one-liner.
func shApp(t *testing.T, name, script string) types.App {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	return types.App{Name: name, Command: "/bin/sh", Args: []string{"-c", script}}
}

// useTempResults points the fallback writer at a per-test file.
func useTempResults(t *testing.T) string {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), "results.jsonl")
	resultChan = nil
	resultPath = tmp
	return tmp
}

func readEnvelopes(t *testing.T, path string) []ResultEnvelope {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	var out []ResultEnvelope
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var env ResultEnvelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			t.Fatalf("unmarshal %q: %v", line, err)
		}
		out = append(out, env)
	}
	return out
}

func TestMeasureApp_ReadySample(t *testing.T) {
	tmp := useTempResults(t)
	SetRunTag("20260101_120000")
	SetSituation("unit")
	defer func() { SetRunTag(""); SetSituation("") }()

	res := MeasureApp(shApp(t, "ok-app", "echo ready"))
	if !res.OK() {
		t.Fatalf("expected clean sample, got error=%q ready_count=%d exit=%d", res.LaunchError, res.ReadyCount, res.ExitCode)
	}
	if res.ReadyMs < 0 || res.ReadyMs > res.TotalMs {
		t.Fatalf("ready %dms outside total %dms", res.ReadyMs, res.TotalMs)
	}
	if res.FirstOutputMs > res.ReadyMs {
		t.Fatalf("first output %dms after ready %dms", res.FirstOutputMs, res.ReadyMs)
	}
	if res.SampleID == "" || len(res.SampleID) != 26 {
		t.Fatalf("unexpected sample id %q", res.SampleID)
	}

	envs := readEnvelopes(t, tmp)
	if len(envs) != 1 {
		t.Fatalf("expected 1 envelope, got %d", len(envs))
	}
	env := envs[0]
	if env.Meta == nil || env.LaunchResult == nil {
		t.Fatalf("incomplete envelope: %+v", env)
	}
	if env.Meta.SchemaVersion != SchemaVersion {
		t.Fatalf("schema version %d, want %d", env.Meta.SchemaVersion, SchemaVersion)
	}
	if env.Meta.RunTag != "20260101_120000" || env.Meta.Situation != "unit" {
		t.Fatalf("meta tags wrong: %+v", env.Meta)
	}
	if _, err := time.Parse(time.RFC3339Nano, env.Meta.TimestampUTC); err != nil {
		t.Fatalf("bad timestamp %q: %v", env.Meta.TimestampUTC, err)
	}
	if env.LaunchResult.AppName != "ok-app" {
		t.Fatalf("app name %q", env.LaunchResult.AppName)
	}
}

func TestWarmupApp_NotRecorded(t *testing.T) {
	tmp := useTempResults(t)
	res := WarmupApp(shApp(t, "warm", "echo ready"))
	if !res.OK() {
		t.Fatalf("expected clean warmup, got error=%q exit=%d", res.LaunchError, res.ExitCode)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatalf("warmup wrote results file: stat err=%v", err)
	}
}

func TestMeasureApp_SetsBenchmarkEnv(t *testing.T) {
	useTempResults(t)
	res := MeasureApp(shApp(t, "env-check", `[ "$BENCHMARK" = "1" ] && echo ready`))
	if !res.OK() {
		t.Fatalf("BENCHMARK=1 not visible to child: error=%q exit=%d", res.LaunchError, res.ExitCode)
	}
}

func TestMeasureApp_ExtraEnvWins(t *testing.T) {
	useTempResults(t)
	app := shApp(t, "extra-env", `[ "$PROBE_MODE" = "fast" ] && echo ready`)
	app.Env = map[string]string{"PROBE_MODE": "fast"}
	res := MeasureApp(app)
	if !res.OK() {
		t.Fatalf("per-app env not applied: error=%q exit=%d", res.LaunchError, res.ExitCode)
	}
}

func TestMeasureApp_NoReadyLine(t *testing.T) {
	useTempResults(t)
	res := MeasureApp(shApp(t, "silent", "exit 0"))
	if res.OK() {
		t.Fatal("sample without ready line must not be OK")
	}
	if res.LaunchError != "exited without ready line" {
		t.Fatalf("unexpected error %q", res.LaunchError)
	}
	if res.ReadyCount != 0 {
		t.Fatalf("ready count %d", res.ReadyCount)
	}
}

func TestMeasureApp_DuplicateReadyLine(t *testing.T) {
	useTempResults(t)
	res := MeasureApp(shApp(t, "dup", "echo ready; echo ready"))
	if res.OK() {
		t.Fatal("duplicate ready must not be OK")
	}
	if res.ReadyCount != 2 {
		t.Fatalf("ready count %d, want 2", res.ReadyCount)
	}
	if !strings.Contains(res.LaunchError, "2 times") {
		t.Fatalf("unexpected error %q", res.LaunchError)
	}
}

func TestMeasureApp_NonZeroExitCapturesStderr(t *testing.T) {
	useTempResults(t)
	res := MeasureApp(shApp(t, "fail", "echo boom >&2; exit 3"))
	if res.OK() {
		t.Fatal("non-zero exit must not be OK")
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code %d, want 3", res.ExitCode)
	}
	if !strings.Contains(res.StderrTail, "boom") {
		t.Fatalf("stderr tail %q missing diagnostic", res.StderrTail)
	}
	if res.StderrBytes == 0 {
		t.Fatal("stderr bytes not counted")
	}
}

func TestMeasureApp_Timeout(t *testing.T) {
	useTempResults(t)
	old := launchTimeout
	SetLaunchTimeout(200 * time.Millisecond)
	defer func() { launchTimeout = old }()

	// exec so the kill hits the sleeping process, not just the shell
	res := MeasureApp(shApp(t, "hang", "exec sleep 5"))
	if !res.TimedOut {
		t.Fatalf("expected timeout, got error=%q", res.LaunchError)
	}
	if !strings.Contains(res.LaunchError, "timeout") {
		t.Fatalf("unexpected error %q", res.LaunchError)
	}
	if res.TotalMs >= 5000 {
		t.Fatalf("kill did not take effect, total=%dms", res.TotalMs)
	}
}

func TestMeasureApp_CustomReadyLine(t *testing.T) {
	useTempResults(t)
	app := shApp(t, "custom", "echo warmed-up")
	app.ReadyLine = "warmed-up"
	res := MeasureApp(app)
	if !res.OK() {
		t.Fatalf("custom ready line not honored: error=%q", res.LaunchError)
	}
	if res.ReadyLine != "warmed-up" {
		t.Fatalf("ready line recorded as %q", res.ReadyLine)
	}
}

func TestMeasureApp_MissingBinary(t *testing.T) {
	useTempResults(t)
	if runtime.GOOS == "windows" {
		t.Skip("requires unix paths")
	}
	res := MeasureApp(types.App{Name: "missing", Command: "/nonexistent/asb-no-such-binary"})
	if res.OK() {
		t.Fatal("missing binary must not be OK")
	}
	if !strings.HasPrefix(res.LaunchError, "start:") {
		t.Fatalf("unexpected error %q", res.LaunchError)
	}
}

func TestReadyLineFor(t *testing.T) {
	old := defaultReadyLine
	SetDefaultReadyLine("go")
	defer func() { defaultReadyLine = old }()

	if got := readyLineFor(types.App{}); got != "go" {
		t.Fatalf("default fallback got %q", got)
	}
	if got := readyLineFor(types.App{ReadyLine: "  booted  "}); got != "booted" {
		t.Fatalf("per-app override got %q", got)
	}
}

func TestTailString(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"", 10, ""},
		{"short\n", 10, "short"},
		{"abcdefghij", 4, "ghij"},
		{"line1\nline2\n\n", 5, "line2"},
	}
	for _, c := range cases {
		if got := tailString(c.in, c.max); got != c.want {
			t.Errorf("tailString(%q,%d) = %q, want %q", c.in, c.max, got)
		}
	}
}

func TestNewSampleIDMonotonic(t *testing.T) {
	a := newSampleID()
	b := newSampleID()
	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("ulid lengths %d/%d", len(a), len(b))
	}
	if a >= b {
		t.Fatalf("ids not increasing: %s then %s", a, b)
	}
}
