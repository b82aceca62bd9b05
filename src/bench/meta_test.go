package bench

import (
	"runtime"
	"testing"
	"time"
)

func TestGatherMetaBasics(t *testing.T) {
	SetRunTag("20260102_030405_i2")
	SetSituation("desk")
	defer func() { SetRunTag(""); SetSituation("") }()

	m := gatherMeta()
	if m.SchemaVersion != SchemaVersion {
		t.Fatalf("schema version %d", m.SchemaVersion)
	}
	if m.OS != runtime.GOOS || m.Arch != runtime.GOARCH {
		t.Fatalf("os/arch %s/%s", m.OS, m.Arch)
	}
	if m.NumCPU < 1 || m.GOMAXPROCS < 1 {
		t.Fatalf("cpu counts %d/%d", m.NumCPU, m.GOMAXPROCS)
	}
	if m.RunTag != "20260102_030405_i2" || m.Situation != "desk" {
		t.Fatalf("tags %q/%q", m.RunTag, m.Situation)
	}
	ts, err := time.Parse(time.RFC3339Nano, m.TimestampUTC)
	if err != nil {
		t.Fatalf("timestamp %q: %v", m.TimestampUTC, err)
	}
	if time.Since(ts) > time.Minute {
		t.Fatalf("stale timestamp %s", m.TimestampUTC)
	}
}

func TestGatherMetaCopies(t *testing.T) {
	SetRunTag("tag-a")
	a := gatherMeta()
	SetRunTag("tag-b")
	b := gatherMeta()
	SetRunTag("")
	if a.RunTag != "tag-a" || b.RunTag != "tag-b" {
		t.Fatalf("meta copies share state: %q %q", a.RunTag, b.RunTag)
	}
	if a == b {
		t.Fatal("gatherMeta returned the same pointer twice")
	}
}

func TestDetectDisplayServer(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("env probing is linux-specific")
	}
	t.Setenv("WAYLAND_DISPLAY", "wayland-0")
	t.Setenv("DISPLAY", ":0")
	if got := detectDisplayServer(); got != "wayland" {
		t.Fatalf("wayland wins, got %q", got)
	}
	t.Setenv("WAYLAND_DISPLAY", "")
	if got := detectDisplayServer(); got != "x11" {
		t.Fatalf("x11 fallback, got %q", got)
	}
	t.Setenv("DISPLAY", "")
	if got := detectDisplayServer(); got != "none" {
		t.Fatalf("headless, got %q", got)
	}
}
