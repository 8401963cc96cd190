package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"cnvpilot/internal/cnvkit"
	"cnvpilot/internal/config"
	"cnvpilot/internal/logging"
	"cnvpilot/internal/resolve"
)

// loadConfig reads and defaults the config, creates the work directory, and
// initializes logging with the dedicated error log. The returned closer closes
// the error log file and may be nil.
func loadConfig(path string) (*config.Config, io.Closer, error) {
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, nil, err
	}

	level, ok := cfg.Level()
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown log level %q, using info\n", cfg.LogLevel)
	}

	if cfg.ErrorLog == "" {
		logging.Init(level, cfg.LogFormat)
		return cfg, nil, nil
	}
	if cfg.WorkDir != "" {
		if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("create work dir: %w", err)
		}
	}
	closer, err := logging.InitWithErrorLog(level, cfg.LogFormat, cfg.ErrorLog)
	if err != nil {
		return nil, nil, fmt.Errorf("open error log: %w", err)
	}
	return cfg, closer, nil
}

// buildTool wires the external CNVkit invoker from the config.
func buildTool(cfg *config.Config) *cnvkit.Tool {
	inv := &cnvkit.ExecInvoker{Timeout: time.Duration(cfg.StageTimeout)}
	return cnvkit.New(cfg.CNVKit, cfg.Processes, inv)
}

// buildResolver picks the variant-file resolver the config asks for.
func buildResolver(cfg *config.Config) (resolve.Resolver, error) {
	switch {
	case cfg.VCFList != "":
		return resolve.LoadList(cfg.VCFList)
	case cfg.VCFDir != "":
		return &resolve.Search{Dir: cfg.VCFDir}, nil
	}
	return resolve.None{}, nil
}
