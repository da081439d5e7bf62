package confd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
)

// Holder provides thread-safe access to a loaded configuration with hot
// reload support: on demand via Reload, on file changes via Watch, or on
// SIGHUP via WatchSignals. A failed reload keeps the previous instance.
type Holder[T any] struct {
	mu       sync.RWMutex
	schema   *Schema[T]
	primary  string
	confDir  string
	logger   *slog.Logger
	cfg      *T
	watcher  *fsnotify.Watcher
	onChange []func(*T)
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewHolder loads the initial configuration from the primary file and the
// optional drop-in directory (Load semantics) and returns a holder for it.
// A nil logger defaults to slog.Default().
func NewHolder[T any](s *Schema[T], primaryPath, confDirPath string, logger *slog.Logger) (*Holder[T], error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := Load(s, primaryPath, confDirPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	absPrimary, err := filepath.Abs(primaryPath)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	absConfDir := ""
	if confDirPath != "" {
		if absConfDir, err = filepath.Abs(confDirPath); err != nil {
			return nil, fmt.Errorf("absolute path: %w", err)
		}
	}
	return &Holder[T]{
		schema:  s,
		primary: absPrimary,
		confDir: absConfDir,
		logger:  logger,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
	}, nil
}

// Get returns the current configuration instance.
func (h *Holder[T]) Get() *T {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Reload reloads the configuration from disk. On failure the old instance is
// kept and the error returned.
func (h *Holder[T]) Reload() error {
	h.logger.Info("reloading configuration", "path", h.primary)

	newCfg, err := Load(h.schema, h.primary, h.confDir)
	if err != nil {
		h.logger.Error("config reload failed, keeping old config", "error", err)
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	h.cfg = newCfg
	listeners := h.onChange
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(newCfg)
	}

	h.logger.Info("configuration reloaded")
	return nil
}

// OnChange registers a callback invoked with the new instance after every
// successful reload.
func (h *Holder[T]) OnChange(fn func(*T)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// Watch starts watching the primary file and the drop-in directory for
// changes. Changes trigger automatic reload.
func (h *Holder[T]) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	// Watch the primary file's directory rather than the file itself; editors
	// that save atomically replace the file and drop its watch.
	if err := watcher.Add(filepath.Dir(h.primary)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	if h.confDir != "" && h.confDir != filepath.Dir(h.primary) {
		if err := watcher.Add(h.confDir); err != nil {
			// Drop-in dir may not exist yet; watching only the primary is
			// still useful.
			h.logger.Warn("cannot watch drop-in directory", "dir", h.confDir, "error", err)
		}
	}

	go h.watchLoop()

	h.logger.Info("watching config for changes", "path", h.primary, "conf_dir", h.confDir)
	return nil
}

// WatchSignals starts listening for SIGHUP to trigger reload.
func (h *Holder[T]) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				h.logger.Info("received SIGHUP, reloading config")
				if err := h.Reload(); err != nil {
					h.logger.Error("SIGHUP reload failed", "error", err)
				}
			case <-h.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	h.logger.Info("listening for SIGHUP to reload config")
}

// Stop stops watching for file changes and signals.
func (h *Holder[T]) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

func (h *Holder[T]) relevant(name string) bool {
	if name == h.primary {
		return true
	}
	return h.confDir != "" && filepath.Dir(name) == h.confDir
}

func (h *Holder[T]) watchLoop() {
	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if !h.relevant(event.Name) {
				continue
			}
			// React to write/create (atomic save = create) and to drop-in
			// files disappearing.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				h.logger.Debug("config file changed", "event", event.Op.String(), "file", event.Name)
				if err := h.Reload(); err != nil {
					h.logger.Error("file watch reload failed", "error", err)
				}
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error("file watcher error", "error", err)

		case <-h.stopCh:
			return
		}
	}
}
