package confd

import (
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHolder_GetAndReload(t *testing.T) {
	td := t.TempDir()
	primary := writeSource(t, td, "app.toml", "host = \"one\"\n")
	confDir := filepath.Join(td, "conf.d")
	writeSource(t, confDir, "10-site.toml", "debug = true\n")

	h, err := NewHolder(newAppSchema(), primary, confDir, quietLogger())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	cfg := h.Get()
	if cfg.Host != "one" || !cfg.Debug {
		t.Fatalf("initial: %+v", cfg)
	}

	var notified atomic.Int32
	h.OnChange(func(c *appCfg) {
		if c.Host != "two" {
			t.Errorf("OnChange got %+v", c)
		}
		notified.Add(1)
	})

	writeSource(t, td, "app.toml", "host = \"two\"\n")
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if h.Get().Host != "two" {
		t.Fatalf("after reload: %+v", h.Get())
	}
	if notified.Load() != 1 {
		t.Fatalf("OnChange called %d times", notified.Load())
	}
}

func TestHolder_FailedReloadKeepsOldConfig(t *testing.T) {
	td := t.TempDir()
	primary := writeSource(t, td, "app.toml", "host = \"good\"\n")

	h, err := NewHolder(newAppSchema(), primary, "", quietLogger())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	var notified atomic.Int32
	h.OnChange(func(*appCfg) { notified.Add(1) })

	writeSource(t, td, "app.toml", "host = [broken\n")
	if err := h.Reload(); err == nil {
		t.Fatalf("expected reload error")
	}
	if h.Get().Host != "good" {
		t.Fatalf("old config lost: %+v", h.Get())
	}
	if notified.Load() != 0 {
		t.Fatalf("OnChange must not fire on failed reload")
	}
}

func TestHolder_InitialLoadError(t *testing.T) {
	td := t.TempDir()
	if _, err := NewHolder(newAppSchema(), filepath.Join(td, "absent.toml"), "", quietLogger()); err == nil {
		t.Fatalf("expected error for missing primary")
	}
}

func TestHolder_WatchReloadsOnWrite(t *testing.T) {
	td := t.TempDir()
	primary := writeSource(t, td, "app.toml", "host = \"one\"\n")

	h, err := NewHolder(newAppSchema(), primary, "", quietLogger())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	changed := make(chan *appCfg, 8)
	h.OnChange(func(c *appCfg) { changed <- c })

	if err := h.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	// Give the watcher a moment to be established before writing.
	time.Sleep(50 * time.Millisecond)

	writeSource(t, td, "app.toml", "host = \"two\"\n")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Host == "two" {
				return
			}
			// Editors may produce several events; keep draining.
		case <-deadline:
			t.Fatalf("no reload observed; current host=%q", h.Get().Host)
		}
	}
}

func TestHolder_StopIsIdempotent(t *testing.T) {
	td := t.TempDir()
	primary := writeSource(t, td, "app.toml", "")

	h, err := NewHolder(newAppSchema(), primary, "", quietLogger())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	if err := h.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	h.Stop()
	h.Stop()
}

func TestHolder_IrrelevantFilesIgnored(t *testing.T) {
	td := t.TempDir()
	primary := writeSource(t, td, "app.toml", "host = \"one\"\n")

	h, err := NewHolder(newAppSchema(), primary, "", quietLogger())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()
	abs, _ := filepath.Abs(filepath.Join(td, "unrelated.txt"))
	if h.relevant(abs) {
		t.Fatalf("unrelated file must not trigger reload")
	}
	if !h.relevant(h.primary) {
		t.Fatalf("primary file must trigger reload")
	}
}

func TestHolder_ConfDirChangesAreRelevant(t *testing.T) {
	td := t.TempDir()
	primary := writeSource(t, td, "app.toml", "")
	confDir := filepath.Join(td, "conf.d")
	writeSource(t, confDir, "10-a.toml", "debug = true\n")

	h, err := NewHolder(newAppSchema(), primary, confDir, quietLogger())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	if !h.relevant(filepath.Join(h.confDir, "20-b.toml")) {
		t.Fatalf("drop-in files must trigger reload")
	}
	if h.relevant(filepath.Join(h.confDir, "sub", "x.toml")) {
		t.Fatalf("only files directly inside the drop-in dir are relevant")
	}
}
