package checker

import (
	"errors"
	"fmt"
)

// ErrMissingStructure reports that input generation found no structure
// source at all: no coordinate override, no existing structure artifact and
// no in-memory structure. For a job fed by a parent this is a transient
// condition that clears once the parent forwards its output.
var ErrMissingStructure = errors.New("checker: no structure source available")

// ConfigurationError is a fatal configuration fault: an unrecognized program
// value, a malformed directive, or a directive inconsistent with the
// structure it applies to. It always surfaces to the orchestrator and is
// never swallowed.
type ConfigurationError struct {
	// Op names the type and method that rejected the configuration.
	Op  string
	Msg string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// NewConfigurationError builds a ConfigurationError for the given operation.
func NewConfigurationError(op, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Op: op, Msg: fmt.Sprintf(format, args...)}
}
