package lens

import (
	"errors"
	"fmt"
)

// ErrorLogPrefix is prepended to fatal messages written by the command line tools.
const ErrorLogPrefix = "!! "

var (
	// ErrParse matches any *ParseError with errors.Is.
	ErrParse = errors.New("source could not be parsed")
	// ErrInvariant matches any *InvariantViolation with errors.Is.
	ErrInvariant = errors.New("rewrite invariant violated")
	// ErrInvalidDirectivePath indicates a path that can not be written inside a #line directive.
	ErrInvalidDirectivePath = errors.New("path can not be expressed in a #line directive")
)

// ParseError reports source text the grammar could not parse.
type ParseError struct {
	Pos    Position
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// InvariantViolation reports a tree shape the transformer must never see, it indicates a defect
// rather than bad input.
type InvariantViolation struct {
	Pos    Position
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation at %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Reason)
}

func (e *InvariantViolation) Is(target error) bool {
	return target == ErrInvariant
}

// IsSkippableRewriteError returns true if the error only concerns the single file being rewritten,
// a batch may record it and continue.
func IsSkippableRewriteError(err error) bool {
	return errors.Is(err, ErrParse)
}
