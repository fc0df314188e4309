// Package core provides the business logic for importing borehole strata
// from survey spreadsheets.
//
// This package contains all domain logic independent of any UI, transport or
// storage engine. It is used by the HTTP server, the CLI and tests without
// modification.
//
// # Pipeline
//
// A decoded sheet ([Grid]) flows through four stages:
//
//  1. [DetectColumns] finds the depth and material columns by header
//     pattern, falling back to content heuristics
//  2. [Correlate] pairs each numeric depth with its material text, or with
//     the cell fill color when the text is blank
//  3. [ClassifyErrors] assigns every problem met so far a [Severity] and
//     folds them into a [ProcessedResult]
//  4. A [ReviewModel] lets a human fix the draft before a [Persister]
//     writes it through the [Storage] port
//
// [Extractor] runs stages 1 to 3:
//
//	ext, err := core.NewExtractor().Extract(ctx, grid, core.ExtractMeta{Filename: "bh-01.xlsx"})
//	if fe, ok := core.AsFatal(err); ok {
//	    // nothing to review; show fe.Errors
//	}
//	review, err := core.NewReviewModel(ext.Draft, ext.Result, core.NewPersister(store))
//
// # Severities
//
//   - Fatal: extraction aborts, no draft is opened
//   - Recoverable: review is forced, confidence is penalized
//   - Warning: logged and shown, never blocking
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has a code prefix for support reference:
//
//   - EXT: extraction failures
//   - REV: review and edit failures
//   - SAV: storage failures
//   - UPL: upload and request failures
package core
