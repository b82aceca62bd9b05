package bench

import (
	"os"
	"runtime"
	"sync"
	"time"
)

// Meta captures the context a sample was taken in. Gathered once per process
// (host facts don't change mid-run), copied per envelope with a fresh
// timestamp, run tag and situation.
type Meta struct {
	TimestampUTC  string  `json:"timestamp_utc"`
	Situation     string  `json:"situation,omitempty"` // Situation on front of json (struct keeps ordering)
	RunTag        string  `json:"run_tag,omitempty"`   // RunTag also in front of json (struct keeps ordering)
	Hostname      string  `json:"hostname,omitempty"`
	OS            string  `json:"os,omitempty"`
	Arch          string  `json:"arch,omitempty"`
	NumCPU        int     `json:"num_cpu,omitempty"`
	GOMAXPROCS    int     `json:"gomaxprocs,omitempty"`
	User          string  `json:"user,omitempty"`
	LoadAvg1      float64 `json:"load_avg_1,omitempty"`
	LoadAvg5      float64 `json:"load_avg_5,omitempty"`
	LoadAvg15     float64 `json:"load_avg_15,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds,omitempty"`
	KernelVersion string  `json:"kernel_version,omitempty"`
	DisplayServer string  `json:"display_server,omitempty"`
	SchemaVersion int     `json:"schema_version"`
}

// ResultEnvelope is one JSONL line: run context plus one launch sample.
type ResultEnvelope struct {
	Meta         *Meta         `json:"meta"`
	LaunchResult *LaunchResult `json:"launch_result"`
}

var (
	baseMetaOnce   sync.Once
	cachedBaseMeta *Meta
)

// gatherMeta returns a copy of the cached base meta stamped with the current
// time, run tag and situation.
func gatherMeta() *Meta {
	baseMetaOnce.Do(func() {
		m := &Meta{}
		if h, err := os.Hostname(); err == nil {
			m.Hostname = h
		}
		m.OS = runtime.GOOS
		m.Arch = runtime.GOARCH
		m.NumCPU = runtime.NumCPU()
		m.GOMAXPROCS = runtime.GOMAXPROCS(0)
		if u := os.Getenv("USER"); u != "" {
			m.User = u
		}
		if la1, la5, la15, err := readLoadAvg(); err == nil {
			m.LoadAvg1, m.LoadAvg5, m.LoadAvg15 = la1, la5, la15
		}
		if up, err := readUptime(); err == nil {
			m.UptimeSeconds = up
		}
		if kv, err := readKernelVersion(); err == nil {
			m.KernelVersion = kv
		}
		m.DisplayServer = detectDisplayServer()
		m.SchemaVersion = SchemaVersion
		cachedBaseMeta = m
	})
	cp := *cachedBaseMeta
	cp.TimestampUTC = time.Now().UTC().Format(time.RFC3339Nano)
	cp.RunTag = currentRunTag
	cp.Situation = currentSituation
	return &cp
}

// detectDisplayServer reports which display server the launched GUI apps will
// talk to. Launch latency differs substantially between wayland and x11, and
// "none" explains a whole batch of startup failures at a glance.
func detectDisplayServer() string {
	switch runtime.GOOS {
	case "darwin":
		return "quartz"
	case "windows":
		return "win32"
	}
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return "wayland"
	}
	if os.Getenv("DISPLAY") != "" {
		return "x11"
	}
	return "none"
}
