package main

import (
	"context"
	"io"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rlch/qjunit/runner"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Receive events as JSON-RPC 2.0 messages on stdin and stdout",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			root := cmd.Root()

			return serve(ctx, e, &readWriteCloser{root.Reader, root.Writer}, root.ErrWriter)
		},
	}
}

// serve handles one JSON-RPC connection until the peer closes it. Stdout
// carries the protocol, so console output goes to console.
func serve(ctx context.Context, e *env, rwc io.ReadWriteCloser, console io.Writer) error {
	opts, err := e.junitOptions()
	if err != nil {
		return err
	}

	formatter, err := runner.NewFormatter(e.cfg.Format, console)
	if err != nil {
		return err
	}

	formatHandler := runner.NewFormatHandler(formatter, console)

	run := runner.New(
		runner.WithHandler(runner.NewMultiHandler(
			runner.NewReportHandler(e.logger, opts...),
			formatHandler,
		)),
		runner.WithTimeout(e.timeout()),
		runner.WithLogger(e.logger),
	)

	e.logger.Info("Serving events over JSON-RPC")

	result, err := run.Run(ctx, runner.NewRPCSource(rwc, e.logger))
	if err != nil {
		return err
	}

	if err := formatHandler.Summary(result); err != nil {
		e.logger.Warn("writing summary", zap.Error(err))
	}

	return e.exit(result.Ok())
}

// readWriteCloser wraps separate reader/writer into io.ReadWriteCloser.
type readWriteCloser struct {
	io.Reader
	io.Writer
}

func (rwc *readWriteCloser) Close() error {
	if c, ok := rwc.Writer.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
