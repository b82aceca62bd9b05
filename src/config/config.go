// Package config loads the apps-under-test configuration: a YAML file with
// per-app launch specs and global defaults, overridable via ASB_ environment
// variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	goyaml "gopkg.in/yaml.v3"

	"github.com/iafilius/AppStartupBench/src/types"
)

// DefaultEnvPrefix is the prefix for environment overrides.
const DefaultEnvPrefix = "ASB_"

// DefaultConfigFile is the conventional apps config filename.
const DefaultConfigFile = "apps.yaml"

// Defaults are global knobs applied to every app unless overridden per app.
type Defaults struct {
	ReadyLine       string `koanf:"ready_line" yaml:"ready_line,omitempty"`
	LaunchTimeoutMs int    `koanf:"launch_timeout_ms" yaml:"launch_timeout_ms,omitempty"`
	CooldownMs      int    `koanf:"cooldown_ms" yaml:"cooldown_ms,omitempty"`
	Warmups         int    `koanf:"warmups" yaml:"warmups,omitempty"`
}

// Config is the full apps configuration.
type Config struct {
	Defaults Defaults    `koanf:"defaults" yaml:"defaults,omitempty"`
	Apps     []types.App `koanf:"apps" yaml:"apps"`
}

// Load reads the YAML config file (when path is non-empty), applies ASB_
// environment overrides on top, fills fallback defaults and validates.
// Loading order (later sources override earlier): file, then environment.
//
// Environment keys use double underscore as the section separator so
// snake_case keys survive: ASB_DEFAULTS__COOLDOWN_MS -> defaults.cooldown_ms.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	envTransformer := func(s string) string {
		s = strings.TrimPrefix(s, DefaultEnvPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}
	if err := k.Load(env.Provider(DefaultEnvPrefix, ".", envTransformer), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) fillDefaults() {
	if strings.TrimSpace(c.Defaults.ReadyLine) == "" {
		c.Defaults.ReadyLine = "ready"
	}
	if c.Defaults.LaunchTimeoutMs <= 0 {
		c.Defaults.LaunchTimeoutMs = 30000
	}
	if c.Defaults.CooldownMs < 0 {
		c.Defaults.CooldownMs = 0
	}
	if c.Defaults.Warmups < 0 {
		c.Defaults.Warmups = 0
	}
}

// Validate checks the config is usable: at least one app, unique non-empty
// names, non-empty commands.
func (c *Config) Validate() error {
	if len(c.Apps) == 0 {
		return fmt.Errorf("config: no apps defined")
	}
	seen := map[string]struct{}{}
	for i, a := range c.Apps {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return fmt.Errorf("config: app %d has no name", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("config: duplicate app name %q", name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(a.Command) == "" {
			return fmt.Errorf("config: app %q has no command", name)
		}
	}
	return nil
}

// Save writes the config as YAML (wizard output).
func (c *Config) Save(path string) error {
	b, err := goyaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	out := append([]byte("# applications under test, generated by --init\n"), b...)
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
