package confd

import (
	"errors"
	"strings"
	"testing"
)

// Shared test schema: a small application config with every field shape the
// engine supports.

type serverCfg struct {
	Host string
	Port int64
	Tags []string
}

type appCfg struct {
	Host   string
	Port   int64
	Debug  bool
	Ratio  float64
	Files  []string
	Labels map[string]string
	Server serverCfg
}

var testServerSchema = MustSchema[serverCfg]("server",
	String("host", "localhost", func(c *serverCfg) *string { return &c.Host }),
	Int("port", 9000, func(c *serverCfg) *int64 { return &c.Port }),
	Strings("tags", []string{"base"}, func(c *serverCfg) *[]string { return &c.Tags }),
)

// newAppSchema builds a fresh schema per test so validators attached by one
// test do not leak into another.
func newAppSchema() *Schema[appCfg] {
	return MustSchema[appCfg]("app",
		String("host", "0.0.0.0", func(c *appCfg) *string { return &c.Host }),
		Int("port", 8080, func(c *appCfg) *int64 { return &c.Port }),
		Bool("debug", false, func(c *appCfg) *bool { return &c.Debug }),
		Float("ratio", 1.0, func(c *appCfg) *float64 { return &c.Ratio }),
		Strings("files", nil, func(c *appCfg) *[]string { return &c.Files }),
		StringMap("labels", nil, func(c *appCfg) *map[string]string { return &c.Labels }),
		Nested("server", testServerSchema, func(c *appCfg) *serverCfg { return &c.Server }),
	)
}

func TestNewSchema_Errors(t *testing.T) {
	var nilSchema *Schema[serverCfg]

	tests := []struct {
		name    string
		build   func() (any, error)
		wantMsg string
	}{
		{
			name: "empty schema name",
			build: func() (any, error) {
				return NewSchema[appCfg]("")
			},
			wantMsg: "schema name cannot be empty",
		},
		{
			name: "empty field name",
			build: func() (any, error) {
				return NewSchema[appCfg]("app",
					String("", "x", func(c *appCfg) *string { return &c.Host }),
				)
			},
			wantMsg: "field name cannot be empty",
		},
		{
			name: "duplicate field name",
			build: func() (any, error) {
				return NewSchema[appCfg]("app",
					String("host", "x", func(c *appCfg) *string { return &c.Host }),
					Int("host", 0, func(c *appCfg) *int64 { return &c.Port }),
				)
			},
			wantMsg: "duplicate field name",
		},
		{
			name: "nil slot accessor",
			build: func() (any, error) {
				return NewSchema[appCfg]("app", String[appCfg]("host", "x", nil))
			},
			wantMsg: "nil slot accessor",
		},
		{
			name: "nil custom parse",
			build: func() (any, error) {
				return NewSchema[appCfg]("app",
					Custom[appCfg, int64]("port", 0, nil, func(c *appCfg) *int64 { return &c.Port }),
				)
			},
			wantMsg: "nil parse function",
		},
		{
			name: "nil nested schema",
			build: func() (any, error) {
				return NewSchema[appCfg]("app",
					Nested("server", nilSchema, func(c *appCfg) *serverCfg { return &c.Server }),
				)
			},
			wantMsg: "nil nested schema",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			var se *SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SchemaError, got %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("error %q does not contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestMustSchema_PanicsOnBadDeclaration(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustSchema[appCfg]("")
}

func TestSchema_NameAndFields(t *testing.T) {
	s := newAppSchema()
	if s.Name() != "app" {
		t.Fatalf("Name: got %q", s.Name())
	}
	want := []string{"host", "port", "debug", "ratio", "files", "labels", "server"}
	got := s.Fields()
	if len(got) != len(want) {
		t.Fatalf("Fields: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Fields[%d]: got %q, want %q (declaration order must be stable)", i, got[i], want[i])
		}
	}
}

func TestDefaults_CollectionsIndependentlyOwned(t *testing.T) {
	first := testServerSchema.Defaults()
	first.Tags[0] = "mutated"

	second := testServerSchema.Defaults()
	if second.Tags[0] != "base" {
		t.Fatalf("defaults share slice storage: got %q, want %q", second.Tags[0], "base")
	}
}

func TestDefaults_Values(t *testing.T) {
	cfg := newAppSchema().Defaults()
	if cfg.Host != "0.0.0.0" || cfg.Port != 8080 || cfg.Debug || cfg.Ratio != 1.0 {
		t.Fatalf("unexpected scalar defaults: %+v", cfg)
	}
	if len(cfg.Files) != 0 || len(cfg.Labels) != 0 {
		t.Fatalf("unexpected collection defaults: %+v", cfg)
	}
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 9000 {
		t.Fatalf("unexpected nested defaults: %+v", cfg.Server)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	s := newAppSchema()

	got, err := Register(r, s)
	if err != nil || got != s {
		t.Fatalf("first Register: got %v, %v", got, err)
	}

	// Registering the same name again is idempotent and returns the first.
	other := newAppSchema()
	got, err = Register(r, other)
	if err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if got != s {
		t.Fatalf("second Register did not return the first registration")
	}

	if found, ok := Lookup[appCfg](r, "app"); !ok || found != s {
		t.Fatalf("Lookup: got %v, %v", found, ok)
	}
	if _, ok := Lookup[serverCfg](r, "app"); ok {
		t.Fatalf("Lookup with wrong type parameter should fail")
	}
	if _, ok := Lookup[appCfg](r, "nope"); ok {
		t.Fatalf("Lookup of unknown name should fail")
	}

	// Same name, different configuration type.
	conflict := MustSchema[serverCfg]("app",
		String("host", "x", func(c *serverCfg) *string { return &c.Host }),
	)
	if _, err := Register(r, conflict); err == nil {
		t.Fatalf("expected SchemaError for conflicting registration")
	}
}
