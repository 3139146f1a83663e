package engine

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Compile matches ErrConfiguration and
// every error caused by the inputs of an evaluation matches ErrInput.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrInput         = errors.New("input error")
)

// Reasons, matched with errors.Is alongside the kind.
var (
	ErrCycle            = errors.New("cycle detected")
	ErrUnresolvedInput  = errors.New("unresolved input")
	ErrUnknownOutput    = errors.New("unknown output")
	ErrDuplicateName    = errors.New("duplicate name")
	ErrShape            = errors.New("shape mismatch")
	ErrMissingNode      = errors.New("missing node")
	ErrVariableMismatch = errors.New("variable mismatch")
)

// ConfigurationError reports a structural problem in a graph description.
type ConfigurationError struct {
	// Node is the node (or output) the problem was found at, if any.
	Node string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error at %q: %v", e.Node, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// InputError reports that the values supplied to an evaluation do not match the graph.
// The graph stays usable; the caller may retry with corrected inputs.
type InputError struct {
	Node     string
	Variable string
	Err      error
}

func (e *InputError) Error() string {
	switch {
	case e.Variable != "":
		return fmt.Sprintf("input error at %q variable %q: %v", e.Node, e.Variable, e.Err)
	case e.Node != "":
		return fmt.Sprintf("input error at %q: %v", e.Node, e.Err)
	default:
		return fmt.Sprintf("input error: %v", e.Err)
	}
}

func (e *InputError) Unwrap() error { return e.Err }

func (e *InputError) Is(target error) bool { return target == ErrInput }

func configErrorf(node string, reason error, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Node: node, Err: fmt.Errorf("%w: %s", reason, fmt.Sprintf(format, args...))}
}

func inputErrorf(node string, reason error, format string, args ...any) *InputError {
	return &InputError{Node: node, Err: fmt.Errorf("%w: %s", reason, fmt.Sprintf(format, args...))}
}
