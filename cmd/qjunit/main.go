// Command qjunit turns QUnit lifecycle event streams into JUnit XML reports.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "qjunit",
		Usage: "Write JUnit XML reports from QUnit lifecycle events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (default: nearest .qjunit.yaml)",
			},
			&cli.StringFlag{
				Name:    "dest",
				Aliases: []string{"d"},
				Usage:   "directory reports are written to",
				Sources: cli.EnvVars("QJUNIT_DEST"),
			},
			&cli.StringFlag{
				Name:  "namer",
				Usage: "expression deriving the report name from `source`",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "report a subject as timed out after this long (0 disables)",
				Sources: cli.EnvVars("QJUNIT_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "console output: dots, verbose or json",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "exit with status 1 when any test failed or timed out",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			reportCommand(),
			serveCommand(),
			configCommand(),
		},
	}
}

// newLogger logs to stderr, human readable on a terminal and JSON otherwise.
func newLogger(debug bool) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		config = zap.NewProductionConfig()
	}

	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	if debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	return config.Build()
}
