package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"gradehub/internal/cli/command"
	"gradehub/internal/cli/config"
	httpclient "gradehub/internal/cli/http"
	"gradehub/internal/cli/repl"
	"gradehub/internal/cli/state"
)

const defaultConfigPath = "configs/cli.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	baseURL := flag.String("base", "", "Override base URL")
	timeout := flag.Duration("timeout", 0, "Override HTTP timeout (e.g. 10s)")
	statePath := flag.String("state", "", "Override state path")
	interval := flag.Duration("interval", 0, "Override poll interval (e.g. 30s)")
	pretty := flag.Bool("pretty", false, "Pretty print JSON response")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// A missing default config is fine; the CLI runs on defaults.
		if !errors.Is(err, os.ErrNotExist) || *configPath != defaultConfigPath {
			fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
			return
		}
		cfg = config.Default()
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *statePath != "" {
		cfg.StatePath = *statePath
	}
	if *interval > 0 {
		cfg.Poll.Interval = *interval
	}
	if *pretty {
		trueValue := true
		cfg.PrettyJSON = &trueValue
	}

	cliState, err := state.Load(cfg.StatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load state failed: %v\n", err)
		return
	}

	client := httpclient.New(cfg.BaseURL, cfg.Timeout)

	commands := command.Registry()
	session := repl.New(client, commands, &cliState, cfg)
	session.Run(context.Background())
}
