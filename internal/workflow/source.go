package workflow

import (
	"bufio"
	"context"
	"io"
	"sync"
)

// Source abstracts the scanning hardware: it emits decoded payload text until
// stopped. Implementations must call onDecode from a single goroutine.
type Source interface {
	Start(ctx context.Context, onDecode func(text string), onErr func(err error)) error
	Stop() error
}

// LineSource treats each line read from r as one decoded frame. Kiosk
// hardware that decodes QR frames itself writes payloads to the process this
// way.
type LineSource struct {
	r    io.Reader
	done chan struct{}
	once sync.Once
}

// NewLineSource creates a source reading from r.
func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{r: r, done: make(chan struct{})}
}

// Start begins delivering lines in a background goroutine.
func (s *LineSource) Start(ctx context.Context, onDecode func(string), onErr func(error)) error {
	go func() {
		scanner := bufio.NewScanner(s.r)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			default:
			}
			if line := scanner.Text(); line != "" {
				onDecode(line)
			}
		}
		if err := scanner.Err(); err != nil && onErr != nil {
			onErr(err)
		}
	}()
	return nil
}

// Stop releases the source. Safe to call more than once.
func (s *LineSource) Stop() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// ChannelSource delivers payloads pushed through Emit. Used by tests and by
// in-process feeds.
type ChannelSource struct {
	ch   chan string
	done chan struct{}
	once sync.Once
}

// NewChannelSource creates an unbuffered channel source.
func NewChannelSource() *ChannelSource {
	return &ChannelSource{ch: make(chan string), done: make(chan struct{})}
}

// Emit pushes one decoded payload. It blocks until the source consumes it or
// is stopped.
func (s *ChannelSource) Emit(text string) {
	select {
	case s.ch <- text:
	case <-s.done:
	}
}

// Start begins delivering emitted payloads in a background goroutine.
func (s *ChannelSource) Start(ctx context.Context, onDecode func(string), onErr func(error)) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case text := <-s.ch:
				onDecode(text)
			}
		}
	}()
	return nil
}

// Stop releases the source. Safe to call more than once.
func (s *ChannelSource) Stop() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
