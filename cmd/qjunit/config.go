package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rlch/qjunit"
	"github.com/rlch/qjunit/junit"
)

// env is the state shared by the commands: the effective configuration and
// the logger.
type env struct {
	cfg    *qjunit.Config
	path   string // config file in use, empty for defaults
	logger *zap.Logger
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Print the effective configuration",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, path, err := resolveConfig(cmd, ".")
			if err != nil {
				return err
			}

			data, err := cfg.Marshal()
			if err != nil {
				return err
			}

			out := cmd.Root().Writer
			if path != "" {
				fmt.Fprintf(out, "# %s\n", path)
			}

			_, err = out.Write(data)

			return err
		},
	}
}

// setup loads the configuration and builds the logger.
func setup(cmd *cli.Command) (*env, error) {
	cfg, path, err := resolveConfig(cmd, ".")
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cmd.Bool("debug"))
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	if path != "" {
		logger.Debug("loaded config", zap.String("path", path))
	}

	return &env{cfg: cfg, path: path, logger: logger}, nil
}

// resolveConfig loads --config, or the nearest config file walking up from
// startDir, and applies flag overrides.
func resolveConfig(cmd *cli.Command, startDir string) (*qjunit.Config, string, error) {
	var (
		cfg  *qjunit.Config
		path = cmd.String("config")
		err  error
	)

	if path == "" {
		path, err = qjunit.FindConfig(startDir)
		if errors.Is(err, qjunit.ErrConfigNotFound) {
			path, err = "", nil
		}

		if err != nil {
			return nil, "", err
		}
	}

	if path == "" {
		cfg = qjunit.Default()
	} else {
		cfg, err = qjunit.LoadConfigFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("loading %s: %w", path, err)
		}
	}

	if cmd.IsSet("dest") {
		cfg.Dest = cmd.String("dest")
	}

	if cmd.IsSet("namer") {
		cfg.Namer = cmd.String("namer")
	}

	if cmd.IsSet("timeout") {
		cfg.Timeout = qjunit.Duration(cmd.Duration("timeout"))
	}

	if cmd.IsSet("format") {
		cfg.Format = cmd.String("format")
	}

	if cmd.IsSet("strict") {
		cfg.Strict = cmd.Bool("strict")
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return cfg, path, nil
}

// junitOptions configures aggregators from the effective configuration.
func (e *env) junitOptions() ([]junit.Option, error) {
	namer, err := qjunit.CompileNamer(e.cfg.Namer, e.logger)
	if err != nil {
		return nil, err
	}

	return []junit.Option{
		junit.WithDest(e.cfg.Dest),
		junit.WithNamer(namer),
		junit.WithLogger(e.logger),
	}, nil
}

func (e *env) timeout() time.Duration {
	return time.Duration(e.cfg.Timeout)
}

// exit turns a failing run into exit status 1 in strict mode.
func (e *env) exit(ok bool) error {
	if e.cfg.Strict && !ok {
		return cli.Exit("", 1)
	}

	return nil
}

func (e *env) close() {
	_ = e.logger.Sync()
}
