// Package relay forwards a child process's output streams into the
// launcher's log. It only reads; nothing is written back to the child.
package relay

import (
	"log/slog"
	"strings"
	"sync"
)

const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// Relay logs output chunks as they arrive.
type Relay struct {
	logger *slog.Logger
}

// New creates a Relay. Records carry component=backend.
func New(logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Relay{logger: logger.With("component", "backend")}
}

// Attach drains both streams in the background. The returned channel is
// closed once both have been closed by their producer. A nil stream counts
// as already closed.
func (r *Relay) Attach(stdout, stderr <-chan []byte) <-chan struct{} {
	var wg sync.WaitGroup
	for stream, ch := range map[string]<-chan []byte{StreamStdout: stdout, StreamStderr: stderr} {
		if ch == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.drain(stream, ch)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

func (r *Relay) drain(stream string, ch <-chan []byte) {
	// stderr is not an error signal; both streams log at info
	for chunk := range ch {
		text := Clean(chunk)
		if text == "" {
			continue
		}
		r.logger.Info(text, "stream", stream)
	}
}

// Clean makes a chunk printable: invalid UTF-8 becomes U+FFFD and trailing
// whitespace is dropped.
func Clean(chunk []byte) string {
	return strings.TrimRight(strings.ToValidUTF8(string(chunk), "�"), " \t\r\n")
}
