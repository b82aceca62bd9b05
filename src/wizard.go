package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/iafilius/AppStartupBench/src/bench"
	"github.com/iafilius/AppStartupBench/src/config"
	"github.com/iafilius/AppStartupBench/src/types"
)

// runInitWizard interactively builds an apps YAML file: one block per app
// (name, command, args, optional ready line), then the shared defaults.
// Existing files are only overwritten after confirmation unless force is set.
func runInitWizard(path string, force bool) error {
	if path == "" {
		path = config.DefaultConfigFile
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			overwrite := false
			prompt := &survey.Confirm{Message: fmt.Sprintf("%s already exists. Overwrite?", path), Default: false}
			if err := survey.AskOne(prompt, &overwrite); err != nil {
				return err
			}
			if !overwrite {
				fmt.Println("[init] keeping existing config")
				return nil
			}
		}
	}

	fmt.Println("[init] describe the applications to benchmark; finish with an empty name")
	cfg := &config.Config{}
	for {
		name := ""
		if err := survey.AskOne(&survey.Input{Message: "App name (empty to finish):"}, &name); err != nil {
			return err
		}
		name = strings.TrimSpace(name)
		if name == "" {
			break
		}
		command := ""
		if err := survey.AskOne(&survey.Input{Message: "Command to launch:"}, &command, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
		args := ""
		if err := survey.AskOne(&survey.Input{Message: "Arguments (space-separated, optional):"}, &args); err != nil {
			return err
		}
		readyLine := ""
		if err := survey.AskOne(&survey.Input{Message: "Ready line (empty for default):"}, &readyLine); err != nil {
			return err
		}
		app := types.App{Name: name, Command: strings.TrimSpace(command), ReadyLine: strings.TrimSpace(readyLine)}
		if strings.TrimSpace(args) != "" {
			app.Args = strings.Fields(args)
		}
		cfg.Apps = append(cfg.Apps, app)
	}
	if len(cfg.Apps) == 0 {
		return fmt.Errorf("no apps configured")
	}

	readyDefault := ""
	if err := survey.AskOne(&survey.Input{Message: "Default ready line:", Default: bench.DefaultReadyLine}, &readyDefault); err != nil {
		return err
	}
	cfg.Defaults.ReadyLine = strings.TrimSpace(readyDefault)
	warm := ""
	if err := survey.AskOne(&survey.Input{Message: "Warmup launches per app:", Default: "1"}, &warm); err != nil {
		return err
	}
	if n, err := strconv.Atoi(strings.TrimSpace(warm)); err == nil && n >= 0 {
		cfg.Defaults.Warmups = n
	}
	cool := ""
	if err := survey.AskOne(&survey.Input{Message: "Cooldown between launches (ms):", Default: "500"}, &cool); err != nil {
		return err
	}
	if n, err := strconv.Atoi(strings.TrimSpace(cool)); err == nil && n >= 0 {
		cfg.Defaults.CooldownMs = n
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Printf("[init] wrote %s (%d apps)\n", path, len(cfg.Apps))
	return nil
}
