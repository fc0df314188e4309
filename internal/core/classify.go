package core

// classify.go assigns every extraction problem a severity and folds a list
// of problems into a ProcessedResult that gates review and auto-save.
//
// Typed *ExtractionError values are classified by their Kind. Anything else
// is matched case-insensitively against the taxonomy table below, Fatal
// rules before Recoverable before Warning, first match wins. Messages no
// rule recognizes become a Recoverable parsing-error so that ambiguity
// always ends in review.

import (
	"errors"
	"fmt"
	"regexp"
)

// Severity is the class of a SemanticError.
type Severity string

const (
	SeverityFatal       Severity = "fatal"
	SeverityRecoverable Severity = "recoverable"
	SeverityWarning     Severity = "warning"
)

// RecommendedAction is the next step suggested by a ProcessedResult.
type RecommendedAction string

const (
	ActionAbort   RecommendedAction = "abort"
	ActionReview  RecommendedAction = "review"
	ActionProceed RecommendedAction = "proceed"
)

// MinRecoverablePenalty is the floor applied to the summed penalty whenever
// at least one Recoverable error is present.
const MinRecoverablePenalty = 0.1

// SemanticError is a classified extraction problem.
type SemanticError struct {
	Kind                       ErrorKind `json:"kind" yaml:"kind"`
	Severity                   Severity  `json:"severity" yaml:"severity"`
	Message                    string    `json:"message" yaml:"message"`
	ShouldAbort                bool      `json:"shouldAbort" yaml:"shouldAbort"`
	ShouldForceReview          bool      `json:"shouldForceReview" yaml:"shouldForceReview"`
	ShouldDowngradeConfidence  bool      `json:"shouldDowngradeConfidence" yaml:"shouldDowngradeConfidence"`
	ShouldLogOnly              bool      `json:"shouldLogOnly" yaml:"shouldLogOnly"`
	CanRetry                   bool      `json:"canRetry" yaml:"canRetry"`
	RequiresManualIntervention bool      `json:"requiresManualIntervention" yaml:"requiresManualIntervention"`
	FallbackAvailable          bool      `json:"fallbackAvailable" yaml:"fallbackAvailable"`
	Guidance                   []string  `json:"guidance" yaml:"guidance,omitempty"`
	Penalty                    float64   `json:"penalty" yaml:"penalty"`
}

// ProcessedResult aggregates the classified errors of one extraction attempt.
type ProcessedResult struct {
	CanProceed           bool              `json:"canProceed" yaml:"canProceed"`
	MustForceReview      bool              `json:"mustForceReview" yaml:"mustForceReview"`
	AutoSaveAllowed      bool              `json:"autoSaveAllowed" yaml:"autoSaveAllowed"`
	ConfidenceAdjustment float64           `json:"confidenceAdjustment" yaml:"confidenceAdjustment"`
	ConfidenceScore      float64           `json:"confidenceScore" yaml:"confidenceScore"`
	RecommendedAction    RecommendedAction `json:"recommendedAction" yaml:"recommendedAction"`
	Fatal                []SemanticError   `json:"fatal" yaml:"fatal,omitempty"`
	Recoverable          []SemanticError   `json:"recoverable" yaml:"recoverable,omitempty"`
	Warnings             []SemanticError   `json:"warnings" yaml:"warnings,omitempty"`
}

// HasKind reports whether any classified error has the given kind.
func (r ProcessedResult) HasKind(kind ErrorKind) bool {
	for _, group := range [][]SemanticError{r.Fatal, r.Recoverable, r.Warnings} {
		for _, se := range group {
			if se.Kind == kind {
				return true
			}
		}
	}
	return false
}

// kindRule is one row of the taxonomy strategy table.
type kindRule struct {
	kind     ErrorKind
	severity Severity
	pattern  *regexp.Regexp
	penalty  float64
	canRetry bool
	guidance []string
}

var taxonomy = []kindRule{
	// Fatal
	{
		kind:     KindDepthDetectionFailed,
		severity: SeverityFatal,
		pattern:  kindPattern(KindDepthDetectionFailed, `depth (column )?(detection|not found|could not be (found|detected))|no depth column|(find|detect|locate) (a |the )?depth`),
		canRetry: true,
		guidance: []string{
			"Add a header such as \"Depth\", \"From\" or \"Top\" above the depth column",
			"Make sure depth values are plain numbers",
		},
	},
	{
		kind:     KindUnsupportedFormat,
		severity: SeverityFatal,
		pattern:  kindPattern(KindUnsupportedFormat, `unsupported|not supported|unknown (file )?format|invalid file type`),
		canRetry: true,
		guidance: []string{"Upload an .xlsx or .csv file"},
	},
	{
		kind:     KindFileCorrupted,
		severity: SeverityFatal,
		pattern:  kindPattern(KindFileCorrupted, `corrupt|damaged|not a valid zip|unexpected eof|cannot (open|read) (file|workbook)`),
		canRetry: true,
		guidance: []string{"Re-export the file from the source application and try again"},
	},
	{
		kind:     KindInsufficientData,
		severity: SeverityFatal,
		pattern:  kindPattern(KindInsufficientData, insufficientDataExpr),
		canRetry: true,
		guidance: []string{"The file must contain at least one row with a numeric depth"},
	},
	{
		kind:     KindSchemaValidationFailed,
		severity: SeverityFatal,
		pattern:  kindPattern(KindSchemaValidationFailed, `schema`),
		guidance: []string{"The record did not match the storage schema; contact support"},
	},

	// Recoverable
	{
		kind:     KindMaterialIdentificationFailed,
		severity: SeverityRecoverable,
		pattern:  kindPattern(KindMaterialIdentificationFailed, `material.*(identif|not found|missing|unknown|detect)|no material`),
		penalty:  0.3,
		guidance: []string{
			"Enter a material for every layer marked unidentified",
			"Add a header such as \"Material\" or \"Lithology\" to the material column",
		},
	},
	{
		kind:     KindParsingError,
		severity: SeverityRecoverable,
		pattern:  kindPattern(KindParsingError, `pars(e|ing)|invalid number|non-numeric|\bnan\b`),
		penalty:  0.2,
		guidance: []string{"Check the highlighted rows; some values could not be read"},
	},
	{
		kind:     KindValidationError,
		severity: SeverityRecoverable,
		pattern:  kindPattern(KindValidationError, `validat|overlap|duplicate|out of range|invalid depth`),
		penalty:  0.2,
		guidance: []string{"Fix overlapping or duplicate depths before saving"},
	},
	{
		kind:     KindConfidenceTooLow,
		severity: SeverityRecoverable,
		pattern:  kindPattern(KindConfidenceTooLow, `confidence|color[- ]only|colou?r[- ]based|ambiguous`),
		penalty:  0.3,
		guidance: []string{
			"Most materials were identified from cell colors only",
			"Replace color codes with material names",
		},
	},
	{
		kind:     KindDepthUnitInconsistency,
		severity: SeverityRecoverable,
		pattern:  kindPattern(KindDepthUnitInconsistency, `\bunits?\b|mixed (units|measurements)`),
		penalty:  0.2,
		guidance: []string{"Confirm whether depths are in feet or meters"},
	},

	// Warning
	{
		kind:     KindMinorFormattingIssues,
		severity: SeverityWarning,
		pattern:  kindPattern(KindMinorFormattingIssues, `format|whitespace|trailing|skipped|blank|out of order`),
	},
	{
		kind:     KindMetadataIncomplete,
		severity: SeverityWarning,
		pattern:  kindPattern(KindMetadataIncomplete, `metadata|incomplete|bore ?id|project|total depth`),
	},
}

// insufficientDataExpr only matches whole-file wording. A note about one
// row or column ("row 4 has no data in ...") must not abort the extraction.
const insufficientDataExpr = `insufficient (data|rows)` +
	`|^\s*no (valid |usable )?(data|rows|layers)( found| detected| with (a )?numeric depths?)?\s*\.?\s*$` +
	`|no (valid |usable )?(data|rows|layers) (found )?in (the )?(file|sheet|workbook)` +
	`|(file|sheet|workbook) (is empty|has no (data|rows|layers))` +
	`|empty (file|sheet|workbook)`

// kindPattern matches the kind name itself or expr, case-insensitively.
func kindPattern(kind ErrorKind, expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(string(kind)) + `|` + expr)
}

var rulesByKind = func() map[ErrorKind]kindRule {
	m := make(map[ErrorKind]kindRule, len(taxonomy))
	for _, r := range taxonomy {
		m[r.kind] = r
	}
	return m
}()

// Classify maps a raw message onto the taxonomy.
func Classify(message string) SemanticError {
	for _, rule := range taxonomy {
		if rule.pattern.MatchString(message) {
			return rule.build(message)
		}
	}
	return rulesByKind[KindParsingError].build(message)
}

// ClassifyKind builds the SemanticError for a known kind. Unknown kinds are
// treated as parsing errors.
func ClassifyKind(kind ErrorKind, message string) SemanticError {
	rule, ok := rulesByKind[kind]
	if !ok {
		rule = rulesByKind[KindParsingError]
	}
	return rule.build(message)
}

// ClassifyErr classifies err by its typed kind when it carries one, and by
// message otherwise.
func ClassifyErr(err error) SemanticError {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		msg := ee.Message
		if ee.Row >= 0 {
			msg = fmt.Sprintf("row %d: %s", ee.Row+1, ee.Message)
		}
		return ClassifyKind(ee.Kind, msg)
	}
	return Classify(err.Error())
}

// ClassifyAll classifies raw messages and aggregates them.
func ClassifyAll(messages []string) ProcessedResult {
	classified := make([]SemanticError, 0, len(messages))
	for _, m := range messages {
		classified = append(classified, Classify(m))
	}
	return Aggregate(classified)
}

// ClassifyErrors classifies errors and aggregates them. nil entries are skipped.
func ClassifyErrors(errs []error) ProcessedResult {
	classified := make([]SemanticError, 0, len(errs))
	for _, err := range errs {
		if err == nil {
			continue
		}
		classified = append(classified, ClassifyErr(err))
	}
	return Aggregate(classified)
}

// Aggregate folds classified errors into a ProcessedResult. The flags and
// score depend only on the multiset of errors, not on their order.
func Aggregate(errs []SemanticError) ProcessedResult {
	var r ProcessedResult
	for _, se := range errs {
		switch se.Severity {
		case SeverityFatal:
			r.Fatal = append(r.Fatal, se)
		case SeverityRecoverable:
			r.Recoverable = append(r.Recoverable, se)
		default:
			r.Warnings = append(r.Warnings, se)
		}
	}

	switch {
	case len(r.Fatal) > 0:
		r.CanProceed = false
		r.MustForceReview = false
		r.AutoSaveAllowed = false
		r.ConfidenceScore = 0
		r.RecommendedAction = ActionAbort

	case len(r.Recoverable) > 0:
		penalty := 0.0
		for _, se := range r.Recoverable {
			penalty += se.Penalty
		}
		penalty = max(penalty, MinRecoverablePenalty)

		r.CanProceed = true
		r.MustForceReview = true
		r.AutoSaveAllowed = false
		r.ConfidenceAdjustment = penalty
		r.ConfidenceScore = clamp01(1 - penalty)
		r.RecommendedAction = ActionReview

	default:
		r.CanProceed = true
		r.AutoSaveAllowed = true
		r.ConfidenceScore = 1
		r.RecommendedAction = ActionProceed
	}
	return r
}

// CheckReviewGate rejects a proceedable result that carries a confidence or
// identification problem without forcing review.
func CheckReviewGate(r ProcessedResult) error {
	if !r.CanProceed || r.MustForceReview {
		return nil
	}
	for _, se := range r.Recoverable {
		if se.Kind == KindConfidenceTooLow || se.Kind == KindMaterialIdentificationFailed {
			return fmt.Errorf("%w: %s present without forced review", ErrInternalConsistency, se.Kind)
		}
	}
	return nil
}

func (r kindRule) build(message string) SemanticError {
	se := SemanticError{
		Kind:     r.kind,
		Severity: r.severity,
		Message:  message,
		CanRetry: r.canRetry,
		Guidance: append([]string(nil), r.guidance...),
		Penalty:  r.penalty,
	}
	switch r.severity {
	case SeverityFatal:
		se.ShouldAbort = true
		se.RequiresManualIntervention = true
	case SeverityRecoverable:
		se.ShouldForceReview = true
		se.ShouldDowngradeConfidence = true
		se.FallbackAvailable = true
	case SeverityWarning:
		se.ShouldLogOnly = true
	}
	return se
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
