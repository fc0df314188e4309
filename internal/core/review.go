package core

// review.go holds the human review step between extraction and storage.
//
// A ReviewModel owns one Draft. It moves through
//
//	Displaying -> Editing* -> Validating -> Saved | Rejected
//
// Every edit either applies completely or returns an *EditError and leaves
// the layers untouched. A failed save returns the model to Editing with all
// edits intact. Once Saved or Rejected, every operation returns
// ErrSessionClosed.
//
// A ReviewModel is not safe for concurrent use.

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// ReviewState is the lifecycle state of a ReviewModel.
type ReviewState string

const (
	StateDisplaying ReviewState = "displaying"
	StateEditing    ReviewState = "editing"
	StateValidating ReviewState = "validating"
	StateSaved      ReviewState = "saved"
	StateRejected   ReviewState = "rejected"
)

// EditAction names a review operation in the edit log.
type EditAction string

const (
	EditMaterial EditAction = "material_edit"
	EditDepth    EditAction = "depth_edit"
	EditMerge    EditAction = "merge"
	EditSplit    EditAction = "split"
	EditDelete   EditAction = "delete"
)

// EditRecord is one entry of the edit log.
type EditRecord struct {
	Action EditAction `json:"action"`
	Index  int        `json:"index"`
	Old    string     `json:"old,omitempty"`
	New    string     `json:"new,omitempty"`
	At     time.Time  `json:"at"`
}

// SaveRequest is what a ReviewModel hands to its Saver.
type SaveRequest struct {
	Draft              Draft
	Result             ProcessedResult
	Edits              []EditRecord
	ReviewAcknowledged bool
}

// Saver writes a confirmed draft. *Persister is the production Saver.
type Saver interface {
	Save(ctx context.Context, req SaveRequest) (PersistedRecord, error)
}

// ReviewModel is the editable working copy of one Draft.
type ReviewModel struct {
	draft        Draft
	result       ProcessedResult
	state        ReviewState
	acknowledged bool
	edits        []EditRecord
	saved        *PersistedRecord

	saver  Saver
	clock  Clock
	logger *slog.Logger
}

// ReviewOption configures a ReviewModel.
type ReviewOption func(*ReviewModel)

// WithReviewClock sets the clock used to stamp edit records.
func WithReviewClock(c Clock) ReviewOption {
	return func(m *ReviewModel) { m.clock = c }
}

// WithReviewLogger sets the logger. nil keeps slog.Default().
func WithReviewLogger(l *slog.Logger) ReviewOption {
	return func(m *ReviewModel) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewReviewModel opens a review over draft. A result that cannot proceed,
// or that violates the review gate, is refused.
func NewReviewModel(draft Draft, result ProcessedResult, saver Saver, opts ...ReviewOption) (*ReviewModel, error) {
	if !result.CanProceed {
		return nil, &FatalError{Errors: result.Fatal}
	}
	if err := CheckReviewGate(result); err != nil {
		return nil, err
	}
	m := &ReviewModel{
		draft:  draft.Clone(),
		result: result,
		state:  StateDisplaying,
		saver:  saver,
		clock:  SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State returns the current lifecycle state.
func (m *ReviewModel) State() ReviewState { return m.state }

// Result returns the ProcessedResult the review was opened with.
func (m *ReviewModel) Result() ProcessedResult { return m.result }

// Acknowledged reports whether AcknowledgeReview was called.
func (m *ReviewModel) Acknowledged() bool { return m.acknowledged }

// Draft returns a copy of the working draft.
func (m *ReviewModel) Draft() Draft { return m.draft.Clone() }

// Layers returns a copy of the working layers.
func (m *ReviewModel) Layers() []Layer { return cloneLayers(m.draft.Layers) }

// Edits returns a copy of the edit log.
func (m *ReviewModel) Edits() []EditRecord { return slices.Clone(m.edits) }

// Saved returns the stored record once the model reached StateSaved.
func (m *ReviewModel) Saved() (PersistedRecord, bool) {
	if m.saved == nil {
		return PersistedRecord{}, false
	}
	return *m.saved, true
}

// UpdateMaterial renames layer i.
func (m *ReviewModel) UpdateMaterial(i int, name string) error {
	if err := m.beginEdit(); err != nil {
		return err
	}
	if err := m.checkIndex("update material", i); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return &EditError{Op: "update material", Index: i, Reason: "material must not be empty"}
	}

	l := &m.draft.Layers[i]
	old := l.Material
	l.Material = name
	markEdited(l)
	m.record(EditMaterial, i, old, name)
	return nil
}

// UpdateDepths sets both bounds of layer i.
func (m *ReviewModel) UpdateDepths(i int, start, end float64) error {
	if err := m.beginEdit(); err != nil {
		return err
	}
	if err := m.checkIndex("update depths", i); err != nil {
		return err
	}
	if !isFinite(start) || !isFinite(end) {
		return &EditError{Op: "update depths", Index: i, Reason: "depths must be finite numbers"}
	}
	if start >= end {
		return &EditError{Op: "update depths", Index: i, Reason: fmt.Sprintf("start %s must be less than end %s", formatDepth(start), formatDepth(end))}
	}

	l := &m.draft.Layers[i]
	old := interval(l.StartDepth, l.EndDepth)
	l.StartDepth, l.EndDepth = start, end
	markEdited(l)
	m.record(EditDepth, i, old, interval(start, end))
	return nil
}

// MergeLayers joins two adjacent layers into one spanning both. The lower
// index keeps its material.
func (m *ReviewModel) MergeLayers(i, j int) error {
	if err := m.beginEdit(); err != nil {
		return err
	}
	if err := m.checkIndex("merge", i); err != nil {
		return err
	}
	if err := m.checkIndex("merge", j); err != nil {
		return err
	}
	if i-j != 1 && j-i != 1 {
		return &EditError{Op: "merge", Index: i, Reason: fmt.Sprintf("layer %d is not adjacent to layer %d", j+1, i+1)}
	}

	lo, hi := min(i, j), max(i, j)
	a, b := m.draft.Layers[lo], m.draft.Layers[hi]
	merged := a
	merged.StartDepth = min(a.StartDepth, b.StartDepth)
	merged.EndDepth = max(a.EndDepth, b.EndDepth)
	markEdited(&merged)

	m.draft.Layers[lo] = merged
	m.draft.Layers = slices.Delete(m.draft.Layers, hi, hi+1)
	m.record(EditMerge, lo,
		fmt.Sprintf("%s %s | %s %s", a.Material, interval(a.StartDepth, a.EndDepth), b.Material, interval(b.StartDepth, b.EndDepth)),
		fmt.Sprintf("%s %s", merged.Material, interval(merged.StartDepth, merged.EndDepth)))
	return nil
}

// SplitLayer cuts layer i in two at depth.
func (m *ReviewModel) SplitLayer(i int, depth float64) error {
	if err := m.beginEdit(); err != nil {
		return err
	}
	if err := m.checkIndex("split", i); err != nil {
		return err
	}
	orig := m.draft.Layers[i]
	if !isFinite(depth) || depth <= orig.StartDepth || depth >= orig.EndDepth {
		return &EditError{Op: "split", Index: i, Reason: fmt.Sprintf("split depth must lie strictly inside %s", interval(orig.StartDepth, orig.EndDepth))}
	}

	upper, lower := orig, orig
	upper.EndDepth = depth
	lower.StartDepth = depth
	if orig.OriginalColor != nil {
		c := *orig.OriginalColor
		lower.OriginalColor = &c
	}
	markEdited(&upper)
	markEdited(&lower)

	m.draft.Layers[i] = upper
	m.draft.Layers = slices.Insert(m.draft.Layers, i+1, lower)
	m.record(EditSplit, i, interval(orig.StartDepth, orig.EndDepth),
		interval(upper.StartDepth, upper.EndDepth)+" | "+interval(lower.StartDepth, lower.EndDepth))
	return nil
}

// DeleteLayer removes layer i.
func (m *ReviewModel) DeleteLayer(i int) error {
	if err := m.beginEdit(); err != nil {
		return err
	}
	if err := m.checkIndex("delete", i); err != nil {
		return err
	}
	old := m.draft.Layers[i]
	m.draft.Layers = slices.Delete(m.draft.Layers, i, i+1)
	m.record(EditDelete, i, fmt.Sprintf("%s %s", old.Material, interval(old.StartDepth, old.EndDepth)), "")
	return nil
}

// Validate runs ValidateUserEdits over the working layers.
func (m *ReviewModel) Validate() ValidationResult {
	return ValidateUserEdits(m.draft.Layers)
}

// AcknowledgeReview records that the reviewer has seen the flagged issues,
// allowing a save when auto-save is not allowed.
func (m *ReviewModel) AcknowledgeReview() error {
	if m.closed() {
		return ErrSessionClosed
	}
	m.acknowledged = true
	return nil
}

// Cancel discards the draft. Nothing is written.
func (m *ReviewModel) Cancel() error {
	if m.closed() {
		return ErrSessionClosed
	}
	m.state = StateRejected
	m.logger.Info("review.cancelled", "filename", m.draft.Metadata.Filename, "edits", len(m.edits))
	return nil
}

// ConfirmAndSave validates the working layers and hands them to the Saver.
// On any failure the model returns to Editing with its edits intact.
func (m *ReviewModel) ConfirmAndSave(ctx context.Context) (PersistedRecord, error) {
	if m.closed() {
		return PersistedRecord{}, ErrSessionClosed
	}
	m.state = StateValidating

	if v := m.Validate(); !v.Valid {
		m.state = StateEditing
		return PersistedRecord{}, &ValidationFailedError{Errors: v.Errors, Warnings: v.Warnings}
	}
	if !m.result.AutoSaveAllowed && !m.acknowledged {
		m.state = StateEditing
		return PersistedRecord{}, ErrReviewNotAcknowledged
	}

	rec, err := m.saver.Save(ctx, SaveRequest{
		Draft:              m.draft.Clone(),
		Result:             m.result,
		Edits:              slices.Clone(m.edits),
		ReviewAcknowledged: m.acknowledged,
	})
	if err != nil {
		m.state = StateEditing
		return PersistedRecord{}, err
	}

	m.state = StateSaved
	m.saved = &rec
	return rec, nil
}

func (m *ReviewModel) closed() bool {
	return m.state == StateSaved || m.state == StateRejected
}

func (m *ReviewModel) beginEdit() error {
	if m.closed() {
		return ErrSessionClosed
	}
	m.state = StateEditing
	return nil
}

func (m *ReviewModel) checkIndex(op string, i int) error {
	if i < 0 || i >= len(m.draft.Layers) {
		return &EditError{Op: op, Index: i, Reason: fmt.Sprintf("index out of range (0-%d)", len(m.draft.Layers)-1)}
	}
	return nil
}

func (m *ReviewModel) record(action EditAction, i int, before, after string) {
	m.edits = append(m.edits, EditRecord{Action: action, Index: i, Old: before, New: after, At: m.clock.Now()})
	m.logger.Debug("review.edit", "action", action, "index", i, "old", before, "new", after)
}

func markEdited(l *Layer) {
	l.Confidence = ConfidenceHigh
	l.UserEdited = true
}

func interval(start, end float64) string {
	return formatDepth(start) + "-" + formatDepth(end)
}
