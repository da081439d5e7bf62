package streams

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestWriters(t *testing.T) {
	var out, errOut bytes.Buffer
	s := Writers(&out, &errOut)

	fmt.Fprint(s.Out(), "to out")
	fmt.Fprint(s.ErrOut(), "to err")

	if out.String() != "to out" || errOut.String() != "to err" {
		t.Fatalf("got out=%q err=%q", out.String(), errOut.String())
	}
	if s.In() == nil {
		t.Fatalf("In must not be nil")
	}
}

func TestDiscard(t *testing.T) {
	s := Discard()
	if n, err := s.Out().Write([]byte("dropped")); err != nil || n != 7 {
		t.Fatalf("Out: n=%d err=%v", n, err)
	}
	if n, err := s.ErrOut().Write([]byte("dropped")); err != nil || n != 7 {
		t.Fatalf("ErrOut: n=%d err=%v", n, err)
	}
}

func TestBuffers(t *testing.T) {
	b := NewBuffers()
	fmt.Fprintln(b.Out(), "hello")
	fmt.Fprintln(b.ErrOut(), "oops")

	out, errOut := b.Strings()
	if out != "hello\n" || errOut != "oops\n" {
		t.Fatalf("got out=%q err=%q", out, errOut)
	}

	b.Reset()
	out, errOut = b.Strings()
	if out != "" || errOut != "" {
		t.Fatalf("Reset left out=%q err=%q", out, errOut)
	}
}

func TestBuffers_ConcurrentWriters(t *testing.T) {
	b := NewBuffers()
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				fmt.Fprintln(b.Out(), "line")
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	out, _ := b.Strings()
	if got := strings.Count(out, "line\n"); got != 400 {
		t.Fatalf("got %d lines, want 400", got)
	}
}

func TestSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := Slog(logger, slog.LevelInfo, slog.LevelWarn)

	// The trailing newline is trimmed so each Write is one record.
	fmt.Fprintf(s.Out(), "created new config\n")
	fmt.Fprintf(s.ErrOut(), "cannot determine user config dir\n")

	logged := buf.String()
	if !strings.Contains(logged, "created new config") {
		t.Fatalf("missing info record: %q", logged)
	}
	if !strings.Contains(logged, "level=INFO") || !strings.Contains(logged, "level=WARN") {
		t.Fatalf("missing levels: %q", logged)
	}
	if strings.Contains(logged, `config\n`) {
		t.Fatalf("newline leaked into record: %q", logged)
	}
}

func TestDefaultStreams(t *testing.T) {
	s := Default()
	if s.In() == nil || s.Out() == nil || s.ErrOut() == nil {
		t.Fatalf("Default must wire all three streams")
	}
	var _ io.Reader = s.In()
}
