package domain

import "fmt"

// MissingInputError reports an absent input file or variable.
type MissingInputError struct {
	Path     string
	Variable string // Empty when the file itself is missing.
	Err      error
}

func (e *MissingInputError) Error() string {
	if e.Variable == "" {
		return fmt.Sprintf("missing input file %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("missing variable %q in %s: %v", e.Variable, e.Path, e.Err)
}

func (e *MissingInputError) Unwrap() error { return e.Err }

// ConfigError reports an invalid configuration document.
type ConfigError struct {
	Key string
	Msg string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Msg)
}
