// Package streams provides IOStreams adapters for the confd Provider and
// Holder: write to stdout/stderr, discard output, capture it in memory, or
// forward each message to a structured slog logger.
package streams

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"sync"
)

// IOStreams is the minimal contract for user-facing streams used by the
// config Provider. Interfaces in Go are satisfied implicitly, so any type
// with these three methods can be passed to confd.WithStreams, including
// types defined outside this package.
type IOStreams interface {
	In() io.Reader
	Out() io.Writer
	ErrOut() io.Writer
}

// Streams is a plain IOStreams implementation forwarding to the given
// targets. Construct one with Default, Writers, Discard or Slog.
type Streams struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func (s Streams) In() io.Reader     { return s.in }
func (s Streams) Out() io.Writer    { return s.out }
func (s Streams) ErrOut() io.Writer { return s.errOut }

// Default returns Streams backed by os.Stdin, os.Stdout and os.Stderr.
func Default() Streams {
	return Streams{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
}

// Writers returns Streams writing Out to out and ErrOut to err.
// In is set to os.Stdin.
func Writers(out, err io.Writer) Streams {
	return Streams{in: os.Stdin, out: out, errOut: err}
}

// Discard returns Streams that drop all output (useful for "--silent").
func Discard() Streams {
	return Writers(io.Discard, io.Discard)
}

// Buffers captures Out and ErrOut in mutex-guarded memory buffers, for
// inspecting messages after Provider.Get() completes. Safe for concurrent
// writers.
type Buffers struct {
	mu  sync.Mutex
	out bytes.Buffer
	err bytes.Buffer
}

// NewBuffers returns an empty Buffers capture.
func NewBuffers() *Buffers { return &Buffers{} }

func (b *Buffers) In() io.Reader     { return os.Stdin }
func (b *Buffers) Out() io.Writer    { return lockedWriter{b, &b.out} }
func (b *Buffers) ErrOut() io.Writer { return lockedWriter{b, &b.err} }

// Strings returns the current contents of the Out and ErrOut buffers.
func (b *Buffers) Strings() (out, err string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.out.String(), b.err.String()
}

// Reset clears both buffers.
func (b *Buffers) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.out.Reset()
	b.err.Reset()
}

type lockedWriter struct {
	b   *Buffers
	buf *bytes.Buffer
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.b.mu.Lock()
	defer w.b.mu.Unlock()
	return w.buf.Write(p)
}

// slogWriter adapts a slog.Logger to io.Writer, one log record per Write.
type slogWriter struct {
	l     *slog.Logger
	level slog.Level
}

func (w slogWriter) Write(p []byte) (int, error) {
	n := len(p)
	// Trim the trailing newline so each Write is one record.
	if n > 0 && p[n-1] == '\n' {
		p = p[:n-1]
	}
	w.l.Log(nil, w.level, string(p))
	return n, nil
}

// Slog returns Streams that write provider messages to l: Out messages at
// the info level, ErrOut messages at the err level.
func Slog(l *slog.Logger, info, err slog.Level) Streams {
	return Streams{
		in:     os.Stdin,
		out:    slogWriter{l: l, level: info},
		errOut: slogWriter{l: l, level: err},
	}
}
