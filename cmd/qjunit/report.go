package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/boyter/gocodewalker"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rlch/qjunit/runner"
)

// ErrNoEventLogs is returned when the arguments name no event logs.
var ErrNoEventLogs = errors.New("no .jsonl or .ndjson event logs found")

// stdinArg reads the event stream from standard input.
const stdinArg = "-"

// eventLogExtensions are the file extensions picked up in directories.
var eventLogExtensions = []string{"jsonl", "ndjson"}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Write JUnit reports from newline-delimited JSON event logs",
		ArgsUsage: "[files or directories...] (default: stdin)",
		Action:    runReport,
	}
}

func runReport(ctx context.Context, cmd *cli.Command) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	inputs, err := collectEventLogs(cmd.Args().Slice())
	if err != nil {
		return err
	}

	if len(inputs) == 0 {
		return ErrNoEventLogs
	}

	opts, err := e.junitOptions()
	if err != nil {
		return err
	}

	root := cmd.Root()

	formatter, err := runner.NewFormatter(e.cfg.Format, root.Writer)
	if err != nil {
		return err
	}

	formatHandler := runner.NewFormatHandler(formatter, root.ErrWriter)
	handler := runner.NewMultiHandler(
		runner.NewReportHandler(e.logger, opts...),
		formatHandler,
	)

	var total *runner.Result

	for _, input := range inputs {
		result, err := reportOne(ctx, e, handler, input, root.Reader)
		if err != nil {
			return fmt.Errorf("reporting %s: %w", input, err)
		}

		if total == nil {
			total = result
		} else {
			total.Merge(result)
		}
	}

	if err := formatHandler.Summary(total); err != nil {
		return err
	}

	return e.exit(total.Ok())
}

// reportOne runs a single event log through handler.
func reportOne(ctx context.Context, e *env, handler runner.Handler, input string, stdin io.Reader) (*runner.Result, error) {
	var (
		r    io.Reader = stdin
		name           = "stdin"
	)

	if input != stdinArg {
		f, err := os.Open(filepath.Clean(input))
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()

		r, name = f, input
	}

	e.logger.Debug("reading events", zap.String("input", name))

	run := runner.New(
		runner.WithHandler(handler),
		runner.WithTimeout(e.timeout()),
		runner.WithLogger(e.logger),
	)

	return run.Run(ctx, runner.NewStreamSource(r, name))
}

// collectEventLogs expands directories into the event logs they contain.
// No arguments means standard input.
func collectEventLogs(args []string) ([]string, error) {
	if len(args) == 0 {
		return []string{stdinArg}, nil
	}

	var files []string

	for _, arg := range args {
		if arg == stdinArg {
			files = append(files, arg)
			continue
		}

		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		var found []string

		err = walkDir(arg, func(path string) {
			found = append(found, path)
		})
		if err != nil {
			return nil, err
		}

		slices.Sort(found)
		files = append(files, found...)
	}

	return files, nil
}

// walkDir walks a directory for event logs, respecting .gitignore.
func walkDir(root string, callback func(path string)) error {
	fileListQueue := make(chan *gocodewalker.File, 100)

	fileWalker := gocodewalker.NewFileWalker(root, fileListQueue)
	fileWalker.AllowListExtensions = eventLogExtensions

	var walkErr error
	fileWalker.SetErrorHandler(func(e error) bool {
		walkErr = e
		return true
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for f := range fileListQueue {
			callback(f.Location)
		}
	}()

	if err := fileWalker.Start(); err != nil {
		return err
	}

	wg.Wait()
	return walkErr
}
