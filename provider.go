package confd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	modellib "github.com/ygrebnov/model"

	"github.com/ygrebnov/confd/streams"
)

const configFileName = "config.toml"

// Provider manages the lifecycle of a configuration object of type T.
//
// A Provider[T] performs the following steps exactly once (it is safe to call
// Get from multiple goroutines):
//  1. Construct a new *T from the schema's field defaults.
//  2. If WithModel is set, bind a model.Model[T] to the same *T and call
//     SetDefaults() to populate remaining zero values from `default` tags.
//  3. Resolve the primary config file path from ${ENV_PREFIX}_CONFIG_PATH, an
//     explicit WithFile path, or a standard user config directory when
//     persistence is enabled with WithPersistence.
//  4. Fold the primary file and then every file in the WithConfDir drop-in
//     directory, in ascending filename order, into the instance (or create
//     the primary file from defaults when persistent and missing).
//  5. Apply environment overrides to scalar and nested fields.
//  6. Run the schema's validator, then model.Validate() when WithModel is set.
//
// Subsequent calls to Get() return the same pointer and metadata.
type Provider[T any] struct {
	mu            sync.RWMutex
	initOnce      sync.Once
	schema        *Schema[T]
	persist       bool
	dirName       string
	envPrefix     string
	filePath      string
	confDir       string
	ignoreMissing bool
	configPath    string
	cfg           *T
	set           map[string]bool
	streams       streams.IOStreams
	fileCreated   bool
	initErr       error
	modelInit     ModelInit[T]
	model         *modellib.Model[T]
}

// Option configures a Provider at construction time. Options are composable
// and can be passed to New in any order.
type Option[T any] func(*Provider[T])

// New constructs a Provider[T] and applies all given options.
// WithSchema is mandatory; New panics without it.
func New[T any](opts ...Option[T]) *Provider[T] {
	p := &Provider[T]{}
	for _, opt := range opts {
		opt(p)
	}
	if p.schema == nil {
		panic("confd: New: WithSchema is required")
	}
	return p
}

// WithSchema sets the schema driving defaults, merging, env overrides and
// validation. Panics if s is nil.
func WithSchema[T any](s *Schema[T]) Option[T] {
	return func(p *Provider[T]) {
		if s == nil {
			panic("confd: WithSchema: schema cannot be nil")
		}
		p.schema = s
	}
}

// WithFile sets an explicit primary config file path.
// ${PREFIX}_CONFIG_PATH, when set, still takes precedence.
// Panics if path is empty.
func WithFile[T any](path string) Option[T] {
	return func(p *Provider[T]) {
		if path == "" {
			panic("confd: WithFile: path cannot be empty")
		}
		p.filePath = path
	}
}

// WithConfDir sets the drop-in directory whose files layer over the primary
// file in ascending filename order. A missing directory contributes nothing.
// Panics if dir is empty.
func WithConfDir[T any](dir string) Option[T] {
	return func(p *Provider[T]) {
		if dir == "" {
			panic("confd: WithConfDir: dir cannot be empty")
		}
		p.confDir = dir
	}
}

// WithPersistence enables reading/writing the primary config file under a
// directory named dirName inside the OS user config directory (e.g.
// XDG_CONFIG_HOME/<dirName>/config.toml). The provider creates the file from
// defaults when it does not exist. Panics if dirName is empty.
func WithPersistence[T any](dirName string) Option[T] {
	return func(p *Provider[T]) {
		if dirName == "" {
			panic("confd: WithPersistence: dirName cannot be empty")
		}
		p.persist = true
		p.dirName = dirName
	}
}

// WithEnvPrefix sets the prefix used for environment overrides, e.g. "MYAPP".
// When set, Provider also honors ${PREFIX}_CONFIG_PATH as the primary config
// file path, taking precedence over WithFile and persistence.
// Panics if prefix is empty.
func WithEnvPrefix[T any](prefix string) Option[T] {
	return func(p *Provider[T]) {
		if prefix == "" {
			panic("confd: WithEnvPrefix: prefix cannot be empty")
		}
		p.envPrefix = prefix
	}
}

// WithIgnoreMissing makes a missing primary config file non-fatal: the
// provider proceeds with defaults, drop-ins and env overrides.
func WithIgnoreMissing[T any]() Option[T] {
	return func(p *Provider[T]) {
		p.ignoreMissing = true
	}
}

// WithStreams wires user-facing message streams (e.g., for "created new
// config"/"loaded from" notifications and non-fatal warnings). Pass adapters
// from the companion streams package to route output to buffers, logs, or
// io.Discard.
func WithStreams[T any](s streams.IOStreams) Option[T] {
	return func(p *Provider[T]) {
		p.streams = s
	}
}

// ModelInit is a constructor hook that binds a model.Model[T] to the
// Provider-managed *T. It allows the Provider to call SetDefaults() before
// file/env and Validate() after file/env. Return the constructed
// model.Model[T] or an error.
type ModelInit[T any] func(*T) (*modellib.Model[T], error)

// WithModel enables integration with github.com/ygrebnov/model. The provided
// init function is called exactly once during the first Get() to build a
// model.Model[T] bound to the Provider's *T. The Provider will then:
//   - call SetDefaults() after schema defaults and before loading files, and
//   - call Validate() after all overrides are applied.
//
// Panics if init is nil.
func WithModel[T any](init ModelInit[T]) Option[T] {
	return func(p *Provider[T]) {
		if init == nil {
			panic("confd: WithModel: init cannot be nil")
		}
		p.modelInit = init
	}
}

// Get initializes and returns the final configuration pointer, the resolved
// primary file path (if any), whether the file was created on this run, and
// an error if initialization failed. Get is safe for concurrent use;
// initialization runs at most once.
func (p *Provider[T]) Get() (cfg *T, path string, fileCreated bool, err error) {
	p.initOnce.Do(func() {
		// 1) Instance from schema defaults.
		p.cfg = p.schema.Defaults()
		p.set = make(map[string]bool)

		// 2) Optionally construct the model wrapper to apply tag defaults
		// before file/env operations, so they only fill zero values.
		if p.modelInit != nil {
			mdl, err := p.modelInit(p.cfg)
			if err != nil {
				p.initErr = err
				return
			}
			p.model = mdl
			if err := p.model.SetDefaults(); err != nil {
				p.initErr = err
				return
			}
		}

		// 3) Resolve the primary config path. If this fails, abort
		// initialization; otherwise continue into file operations.
		if err := p.resolveConfigPath(); err != nil {
			p.initErr = err
			return
		}

		// 4) File operations. In persistent mode a missing primary file is
		// created from the current defaults and excluded from folding (its
		// contents are already in the instance; re-folding would double the
		// sequence defaults).
		primary := p.configPath
		if p.persist && primary != "" {
			if _, statErr := os.Stat(primary); errors.Is(statErr, os.ErrNotExist) {
				if pe := EnsurePath(primary); pe != nil {
					p.initErr = errors.Join(ErrEnsureConfigDir, pe)
					return
				}
				if we := writeFile(primary, p.schema.valueMap(p.cfg)); we != nil {
					p.initErr = we
					return
				}
				p.fileCreated = true
				primary = ""
				if p.streams != nil && p.streams.Out() != nil {
					fmt.Fprintf(p.streams.Out(), "confd: created new config at %s\n", p.configPath)
				}
			}
		}
		fileSet, e := foldFiles(p.schema, p.cfg, primary, p.confDir, p.ignoreMissing)
		if e != nil {
			p.initErr = e
			return
		}
		for k := range fileSet {
			p.set[k] = true
		}
		if p.persist && !p.fileCreated && p.streams != nil && p.streams.Out() != nil {
			fmt.Fprintf(p.streams.Out(), "confd: loaded from %s\n", p.configPath)
		}

		// 5) Apply environment overrides through the schema.
		for _, name := range p.schema.applyEnv(p.cfg, p.envPrefix, os.LookupEnv) {
			p.set[name] = true
		}

		// 6) Validation: the schema's validator first, then the model's.
		if p.schema.validator != nil {
			if err := p.schema.validator(p.cfg); err != nil {
				p.initErr = err
				return
			}
		}
		if p.model != nil {
			if err := p.model.Validate(); err != nil {
				p.initErr = err
				return
			}
		}
	})

	// After once: return cached state or error.
	if p.initErr != nil {
		return nil, "", false, p.initErr
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg, p.configPath, p.fileCreated, nil
}

// SetKeys reports, in sorted order, the top-level fields that were explicitly
// set by any source (file layers or environment), as opposed to carrying
// their defaults. It returns nil before the first successful Get.
func (p *Provider[T]) SetKeys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.initErr != nil || p.set == nil {
		return nil
	}
	keys := make([]string, 0, len(p.set))
	for k := range p.set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p *Provider[T]) resolveConfigPath() error {
	if p.envPrefix != "" {
		if configPath := os.Getenv(p.envPrefix + "_CONFIG_PATH"); configPath != "" {
			p.configPath = configPath
			return nil
		}
	}
	if p.filePath != "" {
		p.configPath = p.filePath
		return nil
	}
	if p.dirName == "" {
		// No primary file; defaults, drop-ins and env only.
		return nil
	}
	// Prefer XDG_CONFIG_HOME explicitly when set, then fall back to os.UserConfigDir.
	userConfigDir := os.Getenv("XDG_CONFIG_HOME")
	if userConfigDir == "" {
		var err error
		userConfigDir, err = os.UserConfigDir()
		if err != nil {
			// Critical when persistent; otherwise emit a note to streams if available.
			if p.persist {
				return fmt.Errorf("cannot determine user config dir: %w", err)
			}
			if p.streams != nil && p.streams.ErrOut() != nil {
				fmt.Fprintf(
					p.streams.ErrOut(),
					"confd: warning: cannot determine user config dir (%v); proceeding without reading a config file\n",
					err,
				)
			}
			return nil
		}
	}
	p.configPath = filepath.Join(userConfigDir, p.dirName, configFileName)
	return nil
}
