package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is one entry of the closed extraction error taxonomy.
type ErrorKind string

// Fatal kinds.
const (
	KindDepthDetectionFailed   ErrorKind = "depth-detection-failed"
	KindUnsupportedFormat      ErrorKind = "unsupported-format"
	KindFileCorrupted          ErrorKind = "file-corrupted"
	KindInsufficientData       ErrorKind = "insufficient-data"
	KindSchemaValidationFailed ErrorKind = "schema-validation-failed"
)

// Recoverable kinds.
const (
	KindMaterialIdentificationFailed ErrorKind = "material-identification-failed"
	KindParsingError                 ErrorKind = "parsing-error"
	KindValidationError              ErrorKind = "validation-error"
	KindConfidenceTooLow             ErrorKind = "confidence-too-low"
	KindDepthUnitInconsistency       ErrorKind = "depth-unit-inconsistency"
)

// Warning kinds.
const (
	KindMinorFormattingIssues ErrorKind = "minor-formatting-issues"
	KindMetadataIncomplete    ErrorKind = "metadata-incomplete"
)

var (
	// ErrInternalConsistency marks a classification result that violates the
	// review gate. It indicates a programming error, not bad input.
	ErrInternalConsistency = errors.New("internal consistency failure")

	// ErrSessionClosed is returned by any ReviewModel operation after the
	// draft was saved or rejected.
	ErrSessionClosed = errors.New("review session closed")

	// ErrReviewNotAcknowledged is returned by ConfirmAndSave when the result
	// forbids auto-save and the reviewer has not acknowledged it.
	ErrReviewNotAcknowledged = errors.New("review required: acknowledge the flagged issues before saving")
)

// ExtractionError is a problem raised while turning a grid into a draft.
// Kind is authoritative; Message is for display.
type ExtractionError struct {
	Kind    ErrorKind
	Message string
	Row     int // sheet row (0-based), -1 when not tied to a row
	Cause   error
}

// NewExtractionError builds an ExtractionError that is not tied to a row.
func NewExtractionError(kind ErrorKind, format string, args ...any) *ExtractionError {
	return &ExtractionError{Kind: kind, Message: fmt.Sprintf(format, args...), Row: -1}
}

func (e *ExtractionError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("%s: row %d: %s", e.Kind, e.Row+1, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// FatalError aborts an extraction. No draft is opened.
type FatalError struct {
	Errors []SemanticError
}

func (e *FatalError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, se := range e.Errors {
		parts[i] = fmt.Sprintf("%s: %s", se.Kind, se.Message)
	}
	return "extraction aborted: " + strings.Join(parts, "; ")
}

// NewFatalError classifies errs and keeps the Fatal ones. Decoders use it
// to abort before a grid exists.
func NewFatalError(errs ...error) *FatalError {
	return &FatalError{Errors: ClassifyErrors(errs).Fatal}
}

// Kinds returns the fatal kinds in order.
func (e *FatalError) Kinds() []ErrorKind {
	out := make([]ErrorKind, len(e.Errors))
	for i, se := range e.Errors {
		out[i] = se.Kind
	}
	return out
}

// EditError reports a rejected review operation. The draft is unchanged.
type EditError struct {
	Op     string
	Index  int
	Reason string
}

func (e *EditError) Error() string {
	return fmt.Sprintf("invalid edit: %s layer %d: %s", e.Op, e.Index, e.Reason)
}

// ValidationFailedError carries the issues that blocked a save.
type ValidationFailedError struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

func (e *ValidationFailedError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "layer validation failed"
	case 1:
		return "layer validation failed: " + e.Errors[0].Error()
	}
	return fmt.Sprintf("layer validation failed: %d errors, first: %s", len(e.Errors), e.Errors[0].Error())
}

// AsFatal reports whether err is, or wraps, a *FatalError.
func AsFatal(err error) (*FatalError, bool) {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
