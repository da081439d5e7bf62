package confd

import "sort"

// Fold is one fold step: it merges one source's value tree mapping into dst,
// field by field. Each field present in src is merged according to its
// declared type's policy:
//
//   - sequences: the incoming elements are appended after the existing ones,
//     original relative order kept, duplicates preserved;
//   - mappings: the incoming pairs are unioned in, the incoming value winning
//     for keys present in both sides;
//   - nested schemas: the incoming mapping is folded into the existing nested
//     instance recursively, so overrides compose structurally instead of
//     replacing the whole sub-configuration;
//   - everything else (primitives, custom types): the incoming coerced value
//     replaces the existing one.
//
// Fields absent from src are left untouched, so a drop-in file only needs to
// name the fields it changes. A key in src that no field declares aborts the
// fold with a TypeError carrying ErrUnknownField.
//
// On error dst may have been partially updated; callers wanting all-or-nothing
// behavior fold into a scratch instance, as Load and LoadValues do.
func (s *Schema[T]) Fold(dst *T, src map[string]any) error {
	var unknown []string
	for k := range src {
		if _, ok := s.index[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &TypeError{Path: unknown[0], cause: ErrUnknownField}
	}
	for _, f := range s.fields {
		node, ok := src[f.name]
		if !ok {
			continue
		}
		if err := f.merge(dst, node); err != nil {
			return withPath(err, f.name)
		}
	}
	return nil
}
