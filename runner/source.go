package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Emitter receives what a Source produces. Emit blocks until the event has
// been handled or ctx is done.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
	Warn(text string)
}

// Source produces events until it is exhausted or ctx is done.
type Source interface {
	Run(ctx context.Context, e Emitter) error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, e Emitter) error

// Run calls f.
func (f SourceFunc) Run(ctx context.Context, e Emitter) error {
	return f(ctx, e)
}

// Events returns a Source emitting the given events in order.
func Events(events ...Event) Source {
	return SourceFunc(func(ctx context.Context, e Emitter) error {
		for _, ev := range events {
			if err := e.Emit(ctx, ev); err != nil {
				return err
			}
		}

		return nil
	})
}

// maxLineSize bounds a single stream line; stack traces can be long.
const maxLineSize = 4 << 20

// StreamSource reads newline-delimited Envelopes. Blank lines are skipped;
// lines that do not decode are reported through Emitter.Warn and skipped.
type StreamSource struct {
	r    io.Reader
	name string
}

// NewStreamSource creates a source reading from r. name identifies the
// stream in warnings.
func NewStreamSource(r io.Reader, name string) *StreamSource {
	return &StreamSource{r: r, name: name}
}

// Run reads the stream to its end.
func (s *StreamSource) Run(ctx context.Context, e Emitter) error {
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0

	for scanner.Scan() {
		line++

		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		ev, err := decodeLine(data)
		if err != nil {
			e.Warn(fmt.Sprintf("%s:%d: %v", s.name, line, err))
			continue
		}

		if err := e.Emit(ctx, ev); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", s.name, err)
	}

	return nil
}

func decodeLine(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	return Decode(env.Event, env.Args)
}
