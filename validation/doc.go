// Package validation validates configuration, topology documents, and
// inbound gateway requests.
//
// It supports struct tag validation (using the validator library) for
// decoded YAML/JSON documents and programmatic validation with error
// collection for request handlers.
//
// # Struct Tag Validation
//
//	type DatasetDef struct {
//	    Name    string `yaml:"name" validate:"required"`
//	    Backend string `yaml:"backend" validate:"omitempty,oneof=memory kafka"`
//	}
//	err := validation.Validate(&def)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("prompt", req.Prompt).MaxLength("prompt", req.Prompt, 4096)
//	if err := v.Validate(); err != nil { ... }
package validation
