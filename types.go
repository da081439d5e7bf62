package confd

import "fmt"

// Type describes a field's declared type and knows how to coerce a value tree
// node into it. Descriptors compose recursively: SliceOf(ObjectOf(s)) is a
// sequence of nested schema instances. Coercion is pure; it never mutates the
// node and has no side effects.
type Type interface {
	// typeName is the name used in diagnostics ("integer", "sequence of string").
	typeName() string
	// coerce converts a value tree node to the declared Go representation
	// (string, int64, float64, bool, []any, map[string]any, or a schema
	// instance value). Failures are TypeErrors annotated with the position
	// inside the node.
	coerce(node any) (any, error)
}

// Primitive type descriptors.
var (
	StringType Type = primitiveType{name: "string"}
	IntType    Type = primitiveType{name: "integer"}
	FloatType  Type = primitiveType{name: "float"}
	BoolType   Type = primitiveType{name: "boolean"}
)

type primitiveType struct {
	name string
}

func (p primitiveType) typeName() string { return p.name }

func (p primitiveType) coerce(node any) (any, error) {
	switch p.name {
	case "string":
		if s, ok := node.(string); ok {
			return s, nil
		}
	case "integer":
		if n, ok := asInt(node); ok {
			return n, nil
		}
	case "float":
		if f, ok := asFloat(node); ok {
			return f, nil
		}
	case "boolean":
		if b, ok := node.(bool); ok {
			return b, nil
		}
	}
	return nil, &TypeError{Expected: p.name, Actual: kindOf(node)}
}

// SliceOf returns a descriptor for a sequence whose elements are coerced with
// elem. Element failures carry the element index.
func SliceOf(elem Type) Type { return sliceType{elem: elem} }

type sliceType struct {
	elem Type
}

func (s sliceType) typeName() string { return "sequence of " + s.elem.typeName() }

func (s sliceType) coerce(node any) (any, error) {
	seq, ok := asSequence(node)
	if !ok {
		return nil, &TypeError{Expected: "sequence", Actual: kindOf(node)}
	}
	out := make([]any, len(seq))
	for i, e := range seq {
		v, err := s.elem.coerce(e)
		if err != nil {
			return nil, withPath(err, fmt.Sprintf("[%d]", i))
		}
		out[i] = v
	}
	return out, nil
}

// MapOf returns a descriptor for a mapping with string keys whose values are
// coerced with val. Value failures carry the key.
func MapOf(val Type) Type { return mapType{val: val} }

type mapType struct {
	val Type
}

func (m mapType) typeName() string { return "mapping of " + m.val.typeName() }

func (m mapType) coerce(node any) (any, error) {
	src, ok := asMapping(node)
	if !ok {
		return nil, &TypeError{Expected: "mapping", Actual: kindOf(node)}
	}
	out := make(map[string]any, len(src))
	for k, e := range src {
		v, err := m.val.coerce(e)
		if err != nil {
			return nil, withPath(err, k)
		}
		out[k] = v
	}
	return out, nil
}

// ObjectOf returns a descriptor for a self-contained instance of schema s,
// for use as a sequence element or mapping value. The node must be a mapping;
// the instance starts from the schema's defaults and the mapping is folded in.
func ObjectOf[N any](s *Schema[N]) Type { return objectType[N]{schema: s} }

type objectType[N any] struct {
	schema *Schema[N]
}

func (o objectType[N]) typeName() string { return "schema " + o.schema.name }

func (o objectType[N]) coerce(node any) (any, error) {
	src, ok := asMapping(node)
	if !ok {
		return nil, &TypeError{Expected: "mapping", Actual: kindOf(node)}
	}
	inst := o.schema.Defaults()
	if err := o.schema.Fold(inst, src); err != nil {
		return nil, err
	}
	return *inst, nil
}

// CustomType returns a descriptor for an opaque-constructible type: fn
// receives the node in its native primitive/collection form and either
// constructs the value or rejects it. A rejection is a TypeError.
func CustomType(name string, fn func(any) (any, error)) Type {
	return customType{name: name, fn: fn}
}

type customType struct {
	name string
	fn   func(any) (any, error)
}

func (c customType) typeName() string { return c.name }

func (c customType) coerce(node any) (any, error) {
	v, err := c.fn(node)
	if err != nil {
		return nil, &TypeError{Expected: c.name, Actual: kindOf(node), cause: err}
	}
	return v, nil
}
