package confd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnsurePath ensures the directories for a file path exist and the path
// does not already exist as a directory.
func EnsurePath(p string) error {
	info, err := os.Stat(p)
	switch {
	case err == nil:
		if info.IsDir() {
			return ErrInaccessiblePath
		}
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return ErrInaccessiblePath
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return ErrCannotCreateDirectories
	}
	return nil
}

// writeFile writes cfg to path atomically (temp file and rename), encoded per
// the path's extension. TOML is the default when the extension is empty.
func writeFile(path string, cfg any) (retErr error) {
	// Guard against panics from encoders on unsupported kinds (e.g. func fields).
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("%w %s: %v", ErrWrite, path, r)
		}
	}()

	ext := filepath.Ext(path)
	var data []byte
	var err error
	switch ext {
	case "", ".toml":
		var buf bytes.Buffer
		if err = toml.NewEncoder(&buf).Encode(cfg); err == nil {
			data = buf.Bytes()
		}
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedConfigFileType, ext)
	}
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrWrite, path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "temp-config-*"+ext)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w %s: %w", ErrWrite, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}
