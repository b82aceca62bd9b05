package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iafilius/AppStartupBench/src/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apps.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
defaults:
  ready_line: booted
  cooldown_ms: 500
apps:
  - name: editor
    command: /usr/bin/editor
    args: ["--new-window"]
  - name: terminal
    command: /usr/bin/term
    env:
      TERM_PROFILE: bench
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Apps) != 2 {
		t.Fatalf("apps %d", len(cfg.Apps))
	}
	if cfg.Defaults.ReadyLine != "booted" || cfg.Defaults.CooldownMs != 500 {
		t.Fatalf("defaults wrong: %+v", cfg.Defaults)
	}
	if cfg.Defaults.LaunchTimeoutMs != 30000 {
		t.Fatalf("timeout fallback not applied: %d", cfg.Defaults.LaunchTimeoutMs)
	}
	if cfg.Apps[0].Args[0] != "--new-window" {
		t.Fatalf("args lost: %+v", cfg.Apps[0])
	}
	if cfg.Apps[1].Env["TERM_PROFILE"] != "bench" {
		t.Fatalf("env lost: %+v", cfg.Apps[1])
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
defaults:
  cooldown_ms: 250
apps:
  - name: editor
    command: /usr/bin/editor
`)
	t.Setenv("ASB_DEFAULTS__COOLDOWN_MS", "750")
	t.Setenv("ASB_DEFAULTS__READY_LINE", "warm")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Defaults.CooldownMs != 750 {
		t.Fatalf("env override lost, cooldown=%d", cfg.Defaults.CooldownMs)
	}
	if cfg.Defaults.ReadyLine != "warm" {
		t.Fatalf("env override lost, ready_line=%q", cfg.Defaults.ReadyLine)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no apps", "defaults:\n  cooldown_ms: 1\n", "no apps"},
		{"empty name", "apps:\n  - name: \"\"\n    command: /bin/x\n", "no name"},
		{"dup name", "apps:\n  - name: a\n    command: /bin/x\n  - name: a\n    command: /bin/y\n", "duplicate"},
		{"empty command", "apps:\n  - name: a\n    command: \"\"\n", "no command"},
	}
	for _, c := range cases {
		path := writeConfig(t, c.content)
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), c.wantErr) {
			t.Errorf("%s: got err %v, want containing %q", c.name, err, c.wantErr)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := &Config{
		Defaults: Defaults{ReadyLine: "ready", LaunchTimeoutMs: 10000, CooldownMs: 100},
		Apps: []types.App{
			{Name: "editor", Command: "/usr/bin/editor", Args: []string{"-n"}},
			{Name: "term", Command: "/usr/bin/term", Env: map[string]string{"A": "b"}, ReadyLine: "up"},
		},
	}
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(back.Apps) != 2 || back.Apps[0].Name != "editor" || back.Apps[1].ReadyLine != "up" {
		t.Fatalf("roundtrip lost data: %+v", back.Apps)
	}
	if back.Apps[1].Env["A"] != "b" {
		t.Fatalf("env lost: %+v", back.Apps[1])
	}
	if back.Defaults.LaunchTimeoutMs != 10000 {
		t.Fatalf("defaults lost: %+v", back.Defaults)
	}
}
