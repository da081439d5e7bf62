package confd

import "strings"

// envLookup abstracts os.LookupEnv so tests can supply fixed environments.
type envLookup func(string) (string, bool)

// applyEnv applies environment overrides to dst and returns the names of the
// fields it set. A field "conn_timeout" of schema prefix "APP" reads
// APP_CONN_TIMEOUT; nested schema fields extend the prefix with their own
// name. Only scalar, custom and nested fields are env-addressable; sequences
// and mappings are skipped. Values that fail to parse for the field's type
// are ignored rather than fatal.
func (s *Schema[T]) applyEnv(dst *T, prefix string, lookup envLookup) []string {
	var set []string
	for _, f := range s.fields {
		if f.env == nil {
			continue
		}
		if f.env(dst, joinEnv(prefix, envSegment(f.name)), lookup) {
			set = append(set, f.name)
		}
	}
	return set
}

func joinEnv(prefix, seg string) string {
	if prefix == "" {
		return seg
	}
	return prefix + "_" + seg
}

// envSegment turns a field name into its environment variable segment:
// upper-cased, with separators normalized to underscores.
func envSegment(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '-' || r == '.' || r == ' ':
			b.WriteByte('_')
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
