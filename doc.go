// Package confd loads typed configuration from layered structured-data files:
// a primary file plus a drop-in directory of override files, folded in
// ascending filename order over the schema's defaults.
//
// A schema describes the configuration type explicitly, one typed field at a
// time, binding each source key to a slot in the struct:
//
//	type Cfg struct {
//	    Host  string
//	    Port  int64
//	    Debug bool
//	    Files []string
//	}
//
//	schema := confd.MustSchema[Cfg]("app",
//	    confd.String("host", "0.0.0.0", func(c *Cfg) *string { return &c.Host }),
//	    confd.Int("port", 8080, func(c *Cfg) *int64 { return &c.Port }),
//	    confd.Bool("debug", false, func(c *Cfg) *bool { return &c.Debug }),
//	    confd.Strings("files", nil, func(c *Cfg) *[]string { return &c.Files }),
//	).WithValidator(func(c *Cfg) error {
//	    if c.Port <= 0 {
//	        return confd.Invalidf("port must be positive, got %d", c.Port)
//	    }
//	    return nil
//	})
//
//	cfg, err := confd.Load(schema, "/etc/app/app.toml", "/etc/app/conf.d")
//
// Later files refine earlier ones per field: sequences append, mappings union
// (incoming value wins per key), nested schemas merge recursively, and every
// other field is replaced. Fields a file does not mention keep their current
// value, so drop-in files only name what they change. Supported formats are
// TOML, YAML and JSON, chosen by file extension.
//
// The Provider type adds the surrounding lifecycle (defaults, files,
// environment overrides, validation) with optional persistence of a default
// config file and optional integration with github.com/ygrebnov/model for
// tag-driven defaults and validation. Holder adds hot reload on file changes
// or SIGHUP.
package confd
