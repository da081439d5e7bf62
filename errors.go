package confd

import (
	"errors"
	"fmt"
	"strings"
)

// Exported error categories returned by the file layer. These are used with
// wrapping so callers can detect error classes using errors.Is/As.
//   - ErrParse: failure to parse a config file.
//   - ErrUnsupportedConfigFileType: file extension is none of .toml/.yaml/.yml/.json.
//   - ErrEnsureConfigDir: failure to create parent directories for a config file.
//   - ErrWrite: failure to write a config file to disk.
var (
	ErrParse                     = errors.New("parse config file")
	ErrUnsupportedConfigFileType = errors.New("unsupported config file type")
	ErrEnsureConfigDir           = errors.New("ensure config dir")
	ErrWrite                     = errors.New("write to config file")
	ErrInaccessiblePath          = errors.New("inaccessible path")
	ErrCannotCreateDirectories   = errors.New("cannot create directories")
)

// ErrUnknownField is carried by a TypeError when a source mapping contains a
// key that no schema field declares.
var ErrUnknownField = errors.New("unknown field")

// SchemaError reports an invalid schema declaration. It is returned by
// NewSchema and is fatal to that schema's usability.
type SchemaError struct {
	Schema string // schema name
	Field  string // offending field, empty if the schema itself is invalid
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema %q: %s", e.Schema, e.Reason)
	}
	return fmt.Sprintf("schema %q: field %q: %s", e.Schema, e.Field, e.Reason)
}

// TypeError reports a source value whose shape does not match the declared
// field type, or a constructor that rejected its input. Path is the dotted
// field path (with sequence indices, e.g. "server.hosts[2]") accumulated as
// the error travels up from the point of failure; the loader additionally
// prefixes the originating file or source index.
type TypeError struct {
	Path     string
	Expected string
	Actual   string
	cause    error
}

func (e *TypeError) Error() string {
	p := e.Path
	if p == "" {
		p = "value"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", p, e.cause)
	}
	return fmt.Sprintf("%s: expected %s, got %s", p, e.Expected, e.Actual)
}

func (e *TypeError) Unwrap() error { return e.cause }

// ConfigError signals semantic invalidity of a structurally valid instance.
// Validators conventionally return it, though any error a validator returns
// is propagated unchanged.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return e.Reason }

// Invalidf builds a ConfigError for use in validators.
func Invalidf(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// joinPath prepends a path segment to an already accumulated suffix. Sequence
// index suffixes ("[2]...") attach without a dot.
func joinPath(seg, rest string) string {
	switch {
	case rest == "":
		return seg
	case strings.HasPrefix(rest, "["):
		return seg + rest
	default:
		return seg + "." + rest
	}
}

// withPath annotates err with a leading path segment. TypeErrors accumulate
// the segment into their Path; anything else is wrapped textually.
func withPath(err error, seg string) error {
	if te, ok := err.(*TypeError); ok {
		te.Path = joinPath(seg, te.Path)
		return te
	}
	return fmt.Errorf("%s: %w", seg, err)
}
