// Package validation validates configuration structs through struct tags
// using go-playground/validator.
//
//	type Config struct {
//	    Timeout time.Duration `validate:"min=0"`
//	}
//	if err := validation.Validate(cfg); err != nil { ... }
//
// Field names in messages are taken from the mapstructure tag (the name a
// user writes in config.yml), falling back to snake_case of the Go name.
package validation
