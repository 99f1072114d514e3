package runner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Runner pumps events from a Source to its handlers on a single goroutine.
type Runner struct {
	handler Handler
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithHandler sets the event handler.
func WithHandler(h Handler) Option {
	return func(r *Runner) {
		r.handler = h
	}
}

// WithTimeout enables the watchdog: a spawned subject that has not reached
// Done within d is sent a synthetic Timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Runner with the given options.
func New(opts ...Option) *Runner {
	r := &Runner{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// item is what travels from the source goroutine to the dispatch loop.
type item struct {
	event Event
	warn  string
	done  chan error
}

// emitter forwards source output to the dispatch loop and waits for each
// event to be handled, so sources observe handler errors.
type emitter struct {
	items chan<- item
}

func (e emitter) Emit(ctx context.Context, event Event) error {
	done := make(chan error, 1)

	select {
	case e.items <- item{event: event, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e emitter) Warn(text string) {
	e.items <- item{warn: text}
}

// Run consumes src until it is exhausted and returns the accumulated
// result. A subject still running when the source ends is sent a Timeout so
// that its report is written.
func (r *Runner) Run(parent context.Context, src Source) (*Result, error) {
	if src == nil {
		return nil, ErrNoSource
	}

	result := NewResult()

	handlers := []Handler{NewResultHandler()}
	if r.handler != nil {
		handlers = append(handlers, r.handler)
	}

	handler := NewMultiHandler(handlers...)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	items := make(chan item)
	srcErr := make(chan error, 1)

	go func() {
		err := src.Run(ctx, emitter{items: items})
		close(items)
		srcErr <- err
	}()

	d := dispatcher{handler: handler, result: result, timeout: r.timeout, logger: r.logger}
	defer d.stopWatchdog()

	handleErr := d.loop(ctx, items)

	// Unblock the source and wait for it to finish.
	cancel()

	stopErr := handleErr
	if stopErr == nil {
		stopErr = context.Canceled
	}

	for it := range items {
		if it.done != nil {
			it.done <- stopErr
		}
	}

	err := <-srcErr

	if handleErr == nil && parent.Err() == nil && d.active {
		r.logger.Warn("event stream ended before done, reporting timeout")
		handleErr = d.dispatch(parent, Timeout{})
	}

	result.Finish()

	switch {
	case handleErr != nil:
		return result, handleErr
	case parent.Err() != nil:
		return result, parent.Err()
	case err != nil && !errors.Is(err, context.Canceled):
		return result, err
	default:
		return result, nil
	}
}

type dispatcher struct {
	handler Handler
	result  *Result
	timeout time.Duration
	logger  *zap.Logger

	active bool
	timer  *time.Timer
}

func (d *dispatcher) loop(ctx context.Context, items <-chan item) error {
	for {
		var expired <-chan time.Time
		if d.timer != nil {
			expired = d.timer.C
		}

		select {
		case it, ok := <-items:
			if !ok {
				return nil
			}

			if it.warn != "" {
				if err := d.handler.Err(it.warn); err != nil {
					return err
				}

				continue
			}

			err := d.dispatch(ctx, it.event)
			it.done <- err

			if err != nil {
				return err
			}
		case <-expired:
			d.timer = nil
			d.logger.Warn("subject timed out", zap.Duration("timeout", d.timeout))

			if err := d.dispatch(ctx, Timeout{}); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// dispatch hands one event to the handlers and tracks whether a subject is
// running for the watchdog.
func (d *dispatcher) dispatch(ctx context.Context, event Event) error {
	switch event.(type) {
	case Spawn:
		d.active = true
		d.startWatchdog()
	case Done, Timeout:
		d.active = false
		d.stopWatchdog()
	}

	return d.handler.Event(ctx, event, d.result)
}

func (d *dispatcher) startWatchdog() {
	d.stopWatchdog()

	if d.timeout > 0 {
		d.timer = time.NewTimer(d.timeout)
	}
}

func (d *dispatcher) stopWatchdog() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
