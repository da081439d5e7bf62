package confd

import (
	"fmt"
	"strconv"
	"sync"
)

// Field is one declared field of a schema: a source key, a type descriptor, a
// default provider and an accessor binding it to a slot in the instance.
// Values are produced by the typed constructors (String, Int, Strings,
// Nested, ...); the zero Field is not usable.
type Field[T any] struct {
	name    string
	typ     Type
	def     func(*T)
	merge   func(*T, any) error
	get     func(*T) any                     // current slot value, for persistence
	env     func(*T, string, envLookup) bool // nil when not env-addressable
	invalid string                           // constructor misuse, reported by NewSchema
}

// Name returns the source key the field binds to.
func (f Field[T]) Name() string { return f.name }

// scalarField builds a replace-on-merge field for a primitive or custom type.
func scalarField[T, V any](name string, typ Type, def V, slot func(*T) *V, parseEnv func(string) (V, bool)) Field[T] {
	f := Field[T]{name: name, typ: typ}
	if slot == nil {
		f.invalid = "nil slot accessor"
		return f
	}
	f.def = func(t *T) { *slot(t) = def }
	f.get = func(t *T) any { return *slot(t) }
	f.merge = func(t *T, node any) error {
		v, err := typ.coerce(node)
		if err != nil {
			return err
		}
		*slot(t) = v.(V)
		return nil
	}
	f.env = func(t *T, envName string, lookup envLookup) bool {
		raw, ok := lookup(envName)
		if !ok {
			return false
		}
		v, ok := parseEnv(raw)
		if !ok {
			// Unparsable overrides are ignored, not fatal.
			return false
		}
		*slot(t) = v
		return true
	}
	return f
}

// String declares a string field. Merge policy: replace.
func String[T any](name string, def string, slot func(*T) *string) Field[T] {
	return scalarField(name, StringType, def, slot, func(raw string) (string, bool) {
		return raw, true
	})
}

// Int declares an integer field. Merge policy: replace.
func Int[T any](name string, def int64, slot func(*T) *int64) Field[T] {
	return scalarField(name, IntType, def, slot, func(raw string) (int64, bool) {
		n, err := strconv.ParseInt(raw, 10, 64)
		return n, err == nil
	})
}

// Float declares a float field. Merge policy: replace.
func Float[T any](name string, def float64, slot func(*T) *float64) Field[T] {
	return scalarField(name, FloatType, def, slot, func(raw string) (float64, bool) {
		f, err := strconv.ParseFloat(raw, 64)
		return f, err == nil
	})
}

// Bool declares a boolean field. Merge policy: replace.
func Bool[T any](name string, def bool, slot func(*T) *bool) Field[T] {
	return scalarField(name, BoolType, def, slot, func(raw string) (bool, bool) {
		b, err := strconv.ParseBool(raw)
		return b, err == nil
	})
}

// Custom declares a field of an opaque-constructible type: parse receives the
// value tree node (or, for environment overrides, the raw string) and either
// constructs the value or rejects it. Merge policy: replace.
func Custom[T, V any](name string, def V, parse func(any) (V, error), slot func(*T) *V) Field[T] {
	if parse == nil {
		return Field[T]{name: name, invalid: "nil parse function"}
	}
	typ := CustomType(fmt.Sprintf("%T", def), func(node any) (any, error) {
		return parse(node)
	})
	return scalarField(name, typ, def, slot, func(raw string) (V, bool) {
		v, err := parse(raw)
		return v, err == nil
	})
}

// Slice declares a sequence field with elements coerced by elem. Merge
// policy: append. An incoming sequence is appended after the existing
// elements, duplicates preserved. The default is copied per instance.
func Slice[T, E any](name string, def []E, elem Type, slot func(*T) *[]E) Field[T] {
	f := Field[T]{name: name, typ: SliceOf(elem)}
	if slot == nil {
		f.invalid = "nil slot accessor"
		return f
	}
	if elem == nil {
		f.invalid = "nil element type"
		return f
	}
	f.def = func(t *T) {
		var fresh []E
		if def != nil {
			fresh = append(fresh, def...)
		}
		*slot(t) = fresh
	}
	f.get = func(t *T) any {
		if *slot(t) == nil {
			return []E{}
		}
		return *slot(t)
	}
	f.merge = func(t *T, node any) error {
		coerced, err := f.typ.coerce(node)
		if err != nil {
			return err
		}
		out := *slot(t)
		for i, v := range coerced.([]any) {
			e, ok := v.(E)
			if !ok {
				return &TypeError{
					Path:     fmt.Sprintf("[%d]", i),
					Expected: fmt.Sprintf("%T", *new(E)),
					Actual:   kindOf(v),
				}
			}
			out = append(out, e)
		}
		*slot(t) = out
		return nil
	}
	return f
}

// Strings declares a sequence-of-string field.
func Strings[T any](name string, def []string, slot func(*T) *[]string) Field[T] {
	return Slice(name, def, StringType, slot)
}

// Ints declares a sequence-of-integer field.
func Ints[T any](name string, def []int64, slot func(*T) *[]int64) Field[T] {
	return Slice(name, def, IntType, slot)
}

// Map declares a string-keyed mapping field with values coerced by val. Merge
// policy: union. Incoming pairs are merged in, the incoming value winning for
// keys present in both. The default is copied per instance.
func Map[T, V any](name string, def map[string]V, val Type, slot func(*T) *map[string]V) Field[T] {
	f := Field[T]{name: name, typ: MapOf(val)}
	if slot == nil {
		f.invalid = "nil slot accessor"
		return f
	}
	if val == nil {
		f.invalid = "nil value type"
		return f
	}
	f.def = func(t *T) {
		var fresh map[string]V
		if def != nil {
			fresh = make(map[string]V, len(def))
			for k, v := range def {
				fresh[k] = v
			}
		}
		*slot(t) = fresh
	}
	f.get = func(t *T) any {
		if *slot(t) == nil {
			return map[string]V{}
		}
		return *slot(t)
	}
	f.merge = func(t *T, node any) error {
		coerced, err := f.typ.coerce(node)
		if err != nil {
			return err
		}
		out := *slot(t)
		if out == nil {
			out = make(map[string]V)
		}
		for k, v := range coerced.(map[string]any) {
			e, ok := v.(V)
			if !ok {
				return &TypeError{
					Path:     k,
					Expected: fmt.Sprintf("%T", *new(V)),
					Actual:   kindOf(v),
				}
			}
			out[k] = e
		}
		*slot(t) = out
		return nil
	}
	return f
}

// StringMap declares a mapping-of-string field.
func StringMap[T any](name string, def map[string]string, slot func(*T) *map[string]string) Field[T] {
	return Map(name, def, StringType, slot)
}

// Nested declares a field that is itself a fully typed sub-configuration.
// Merge policy: recurse. Incoming sub-fields layer into the existing nested
// instance field by field, exactly as the top level does; sub-fields absent
// from the incoming mapping keep their already-merged values.
func Nested[T, N any](name string, s *Schema[N], slot func(*T) *N) Field[T] {
	f := Field[T]{name: name}
	if s == nil {
		f.invalid = "nil nested schema"
		return f
	}
	f.typ = ObjectOf(s)
	if slot == nil {
		f.invalid = "nil slot accessor"
		return f
	}
	f.def = func(t *T) { *slot(t) = *s.Defaults() }
	f.get = func(t *T) any { return s.valueMap(slot(t)) }
	f.merge = func(t *T, node any) error {
		src, ok := asMapping(node)
		if !ok {
			return &TypeError{Expected: "mapping", Actual: kindOf(node)}
		}
		return s.Fold(slot(t), src)
	}
	f.env = func(t *T, envName string, lookup envLookup) bool {
		return s.applyEnv(slot(t), envName, lookup) != nil
	}
	return f
}

// Schema describes a configuration type: its ordered field list and an
// optional validator. Build one per type with NewSchema; a Schema is
// immutable after construction and safe for concurrent use.
type Schema[T any] struct {
	name      string
	fields    []Field[T]
	index     map[string]int
	validator func(*T) error
}

// NewSchema builds the schema descriptor for T from its declared fields.
// Field order is preserved as declared. Returns a SchemaError if the
// declaration is unusable (empty or duplicate field names, misused field
// constructors).
func NewSchema[T any](name string, fields ...Field[T]) (*Schema[T], error) {
	if name == "" {
		return nil, &SchemaError{Schema: name, Reason: "schema name cannot be empty"}
	}
	s := &Schema[T]{
		name:   name,
		fields: fields,
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.name == "" {
			return nil, &SchemaError{Schema: name, Reason: "field name cannot be empty"}
		}
		if f.invalid != "" {
			return nil, &SchemaError{Schema: name, Field: f.name, Reason: f.invalid}
		}
		if _, dup := s.index[f.name]; dup {
			return nil, &SchemaError{Schema: name, Field: f.name, Reason: "duplicate field name"}
		}
		s.index[f.name] = i
	}
	return s, nil
}

// MustSchema is NewSchema, panicking on a declaration error. Intended for
// package-level schema variables.
func MustSchema[T any](name string, fields ...Field[T]) *Schema[T] {
	s, err := NewSchema(name, fields...)
	if err != nil {
		panic("confd: " + err.Error())
	}
	return s
}

// WithValidator attaches a validator invoked on the final instance after all
// sources are folded. A validator conventionally returns a *ConfigError;
// whatever it returns is propagated to the loader's caller unchanged.
// Returns the schema for chaining.
func (s *Schema[T]) WithValidator(fn func(*T) error) *Schema[T] {
	s.validator = fn
	return s
}

// Name returns the schema's registration name.
func (s *Schema[T]) Name() string { return s.name }

// Fields returns the declared field names in declaration order.
func (s *Schema[T]) Fields() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.name
	}
	return out
}

// Defaults returns a fresh instance populated from each field's default.
// Collection defaults are copied, so instances never share backing storage.
func (s *Schema[T]) Defaults() *T {
	var t T
	for _, f := range s.fields {
		f.def(&t)
	}
	return &t
}

// valueMap renders an instance back into a value tree mapping keyed by the
// schema's field names, so persisted defaults parse back through the same
// schema. Nested instances become nested mappings.
func (s *Schema[T]) valueMap(t *T) map[string]any {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		out[f.name] = f.get(t)
	}
	return out
}

// Registry is a caller-owned mapping from schema name to descriptor. Useful
// when schemas for several configuration types are assembled in one place;
// nothing in this package requires one. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]any)}
}

// Register adds s to the registry. Registering the same schema name twice is
// idempotent and returns the first registration; re-registering a name with a
// different configuration type is a SchemaError.
func Register[T any](r *Registry, s *Schema[T]) (*Schema[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.schemas[s.name]; ok {
		prev, ok := existing.(*Schema[T])
		if !ok {
			return nil, &SchemaError{Schema: s.name, Reason: "already registered with a different type"}
		}
		return prev, nil
	}
	r.schemas[s.name] = s
	return s, nil
}

// Lookup retrieves a registered schema by name. The second result is false if
// the name is unknown or registered with a different configuration type.
func Lookup[T any](r *Registry, name string) (*Schema[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name].(*Schema[T])
	return s, ok
}
