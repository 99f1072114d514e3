package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"
)

// RPCSource receives events as JSON-RPC 2.0 messages: the method is the
// event name and the params are its positional arguments. Notifications
// are the normal case; calls are acknowledged with true once the event has
// been handled.
type RPCSource struct {
	rwc    io.ReadWriteCloser
	logger *zap.Logger
}

// NewRPCSource creates a source serving the connection rwc.
func NewRPCSource(rwc io.ReadWriteCloser, logger *zap.Logger) *RPCSource {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RPCSource{rwc: rwc, logger: logger}
}

// Run serves the connection until the peer closes it or ctx is done.
func (s *RPCSource) Run(ctx context.Context, e Emitter) error {
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(s.rwc))
	conn.Go(ctx, s.handler(e))

	select {
	case <-ctx.Done():
		_ = conn.Close()
		<-conn.Done()

		return ctx.Err()
	case <-conn.Done():
	}

	err := conn.Err()
	if err == nil || isClosed(err) {
		return nil
	}

	return fmt.Errorf("rpc connection: %w", err)
}

func (s *RPCSource) handler(e Emitter) jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		s.logger.Debug("rpc event", zap.String("method", req.Method()))

		ev, err := Decode(req.Method(), req.Params())
		if err != nil {
			e.Warn(err.Error())

			if errors.Is(err, ErrUnknownEvent) {
				return reply(ctx, nil, fmt.Errorf("%q: %w", req.Method(), jsonrpc2.ErrMethodNotFound))
			}

			return reply(ctx, nil, fmt.Errorf("%s: %w", err, jsonrpc2.ErrInvalidParams))
		}

		if err := e.Emit(ctx, ev); err != nil {
			return reply(ctx, nil, fmt.Errorf("%s: %w", err, jsonrpc2.ErrInternal))
		}

		return reply(ctx, true, nil)
	}
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed)
}
