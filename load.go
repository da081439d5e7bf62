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

// LoadValues builds an instance of s from already-parsed value tree mappings:
// defaults first, then each source folded in order, then the validator. Any
// coercion or merge failure aborts the whole load, annotated with the source
// index; no partial instance is returned.
func LoadValues[T any](s *Schema[T], sources ...map[string]any) (*T, error) {
	cfg := s.Defaults()
	for i, src := range sources {
		if err := s.Fold(cfg, src); err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
	}
	if s.validator != nil {
		if err := s.validator(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Load builds an instance of s from a primary config file plus an optional
// drop-in directory. The primary file is folded first (it must exist, though
// an empty file is a valid empty mapping), then every file directly inside
// confDirPath in ascending byte-wise filename order, so "10-a.toml" folds
// before "2-b.toml". A missing or empty drop-in directory contributes
// nothing. Supported formats, chosen by extension: .toml, .yaml, .yml, .json.
//
// After all files are folded the schema's validator, if any, runs on the
// final instance. Load is all-or-nothing: any parse, coercion, merge or
// validation failure returns a nil instance and an error naming the
// offending file and field path.
func Load[T any](s *Schema[T], primaryPath, confDirPath string) (*T, error) {
	cfg := s.Defaults()
	if _, err := foldFiles(s, cfg, primaryPath, confDirPath, false); err != nil {
		return nil, err
	}
	if s.validator != nil {
		if err := s.validator(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// foldFiles folds the primary file and the drop-in directory's files into an
// existing instance and reports which top-level fields the sources set. The
// validator is the caller's responsibility. With ignoreMissing, a missing
// primary file is skipped instead of failing.
func foldFiles[T any](s *Schema[T], cfg *T, primaryPath, confDirPath string, ignoreMissing bool) (map[string]bool, error) {
	var paths []string
	if primaryPath != "" {
		paths = append(paths, primaryPath)
	}
	dropIns, err := confDirFiles(confDirPath)
	if err != nil {
		return nil, err
	}
	paths = append(paths, dropIns...)

	set := make(map[string]bool)
	for _, path := range paths {
		doc, err := parseFile(path)
		if err != nil {
			if ignoreMissing && path == primaryPath && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		if err := s.Fold(cfg, doc); err != nil {
			return nil, fmt.Errorf("in file %s: %w", path, err)
		}
		for k := range doc {
			set[k] = true
		}
	}
	return set, nil
}

// confDirFiles lists the drop-in files of dir in ascending filename order.
// A missing directory is treated as empty.
func confDirFiles(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config dir %s: %w", dir, err)
	}
	var paths []string
	// os.ReadDir returns entries sorted by filename.
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// parseFile reads and parses one source file into a value tree mapping.
// An empty (or whitespace-only) file is an empty mapping; non-mapping
// top-level content is a TypeError.
func parseFile(path string) (map[string]any, error) {
	ext := filepath.Ext(path)
	switch ext {
	case ".toml", ".yaml", ".yml", ".json":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedConfigFileType, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	var doc any
	switch ext {
	case ".toml":
		m := map[string]any{}
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrParse, path, err)
		}
		return m, nil
	case ".json":
		err = json.Unmarshal(data, &doc)
	default:
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrParse, path, err)
	}
	if doc == nil {
		return map[string]any{}, nil
	}
	m, ok := asMapping(doc)
	if !ok {
		return nil, fmt.Errorf("in file %s: %w", path, &TypeError{Expected: "mapping", Actual: kindOf(doc)})
	}
	return m, nil
}
