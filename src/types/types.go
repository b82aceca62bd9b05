// Package types holds the small shared structs passed between the
// collector CLI, the launch measurement engine and the analysis code.
package types

// App describes one application under test: the binary to launch and,
// optionally, per-app overrides for environment and the stdout line that
// marks the app ready. An empty ReadyLine falls back to the global default.
type App struct {
	Name      string            `json:"name" yaml:"name" koanf:"name"`
	Command   string            `json:"command" yaml:"command" koanf:"command"`
	Args      []string          `json:"args,omitempty" yaml:"args,omitempty" koanf:"args"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty" koanf:"env"`
	ReadyLine string            `json:"ready_line,omitempty" yaml:"ready_line,omitempty" koanf:"ready_line"`
}
