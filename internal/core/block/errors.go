package block

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports persisted JSON that does not match the expected
// shape. Path names the offending field, e.g. "pages[0].state.lines[2].id".
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid json: %v", e.Err)
	}
	return fmt.Sprintf("invalid json at %s: %v", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a ValidationError at path.
func Invalid(path, format string, args ...any) error {
	return &ValidationError{Path: path, Err: fmt.Errorf(format, args...)}
}

// AtPath prefixes the path of a ValidationError with prefix. Any other error
// is turned into a ValidationError located at prefix.
func AtPath(prefix string, err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return &ValidationError{Path: JoinPath(prefix, verr.Path), Err: verr.Err}
	}
	return &ValidationError{Path: prefix, Err: err}
}

// JoinPath concatenates two field paths.
func JoinPath(prefix, rest string) string {
	switch {
	case prefix == "":
		return rest
	case rest == "":
		return prefix
	case strings.HasPrefix(rest, "["):
		return prefix + rest
	default:
		return prefix + "." + rest
	}
}

// EvaluationError is the result of an expression that failed to evaluate.
// It is carried as a value and never aborts a recompute.
type EvaluationError struct {
	Expr string
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %q: %v", e.Expr, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// IsError reports whether a result value is an evaluation failure.
func IsError(v Value) bool {
	_, ok := v.(*EvaluationError)
	return ok
}
