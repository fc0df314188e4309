package core

// persist.go converts a reviewed Draft into the stored record shape.
//
// Saved records are indistinguishable from manually entered bores: the
// metadata block is a closed struct, so nothing beyond the canonical fields
// and the three strata keys can reach storage. Depths are stored in feet
// rounded to two decimals.

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	// DefaultCollection is where bore records are written.
	DefaultCollection = "bores"

	// MaxDepthFeet is the deepest plausible stored depth.
	MaxDepthFeet = 10000.0

	// CanonicalUnit is the unit of every stored depth.
	CanonicalUnit = UnitFeet

	TagStrataExtraction = "strata-extraction"
	TagImported         = "imported"

	anonymousUser = "anonymous"
	recordPrefix  = "bore"
)

// PersistedRecord is the storage shape of a bore.
type PersistedRecord struct {
	ID       string         `json:"id"`
	Project  string         `json:"project"`
	Filename string         `json:"filename"`
	Files    []string       `json:"files"`
	Metadata RecordMetadata `json:"metadata"`
}

// RecordMetadata holds the canonical bore fields plus strataLayers,
// strataSummary and extractionSource. No other key exists.
type RecordMetadata struct {
	BoreID           string           `json:"boreId"`
	Date             string           `json:"date"`
	WaterLevel       *float64         `json:"waterLevel"`
	Coordinates      *Coordinates     `json:"coordinates"`
	Tags             []string         `json:"tags"`
	Notes            string           `json:"notes"`
	CreatedAt        string           `json:"createdAt"`
	CreatedBy        string           `json:"createdBy"`
	StrataLayers     []Layer          `json:"strataLayers"`
	StrataSummary    StrataSummary    `json:"strataSummary"`
	ExtractionSource ExtractionSource `json:"extractionSource"`
}

// StrataSummary describes the stored layer set.
type StrataSummary struct {
	TotalDepth    float64   `json:"totalDepth"`
	DepthUnit     DepthUnit `json:"depthUnit"`
	LayerCount    int       `json:"layerCount"`
	MaterialCount int       `json:"materialCount"`
	Materials     []string  `json:"materials"`
}

// ExtractionSource records how the layers were produced.
type ExtractionSource struct {
	Method          Source    `json:"method"`
	Filename        string    `json:"filename"`
	ExtractedAt     string    `json:"extractedAt"`
	ConfidenceScore float64   `json:"confidenceScore"`
	ReviewForced    bool      `json:"reviewForced"`
	EditCount       int       `json:"editCount"`
	WarningCount    int       `json:"warningCount"`
	OriginalUnit    DepthUnit `json:"originalUnit"`
}

// Persister normalizes reviewed drafts and writes them to Storage.
type Persister struct {
	storage    Storage
	identity   Identity
	clock      Clock
	ids        IDGenerator
	schema     SchemaValidator
	notifier   Notifier
	collection string
	logger     *slog.Logger
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithIdentity sets how createdBy is resolved.
func WithIdentity(id Identity) PersisterOption {
	return func(p *Persister) { p.identity = id }
}

// WithClock sets the timestamp source.
func WithClock(c Clock) PersisterOption {
	return func(p *Persister) { p.clock = c }
}

// WithIDGenerator sets the record id source.
func WithIDGenerator(g IDGenerator) PersisterOption {
	return func(p *Persister) { p.ids = g }
}

// WithSchemaValidator enables schema checks before writing.
func WithSchemaValidator(v SchemaValidator) PersisterOption {
	return func(p *Persister) { p.schema = v }
}

// WithNotifier sets where save outcomes are announced.
func WithNotifier(n Notifier) PersisterOption {
	return func(p *Persister) { p.notifier = n }
}

// WithCollection overrides DefaultCollection.
func WithCollection(name string) PersisterOption {
	return func(p *Persister) {
		if name != "" {
			p.collection = name
		}
	}
}

// WithPersisterLogger sets the logger. nil keeps slog.Default().
func WithPersisterLogger(l *slog.Logger) PersisterOption {
	return func(p *Persister) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPersister creates a Persister writing to storage.
func NewPersister(storage Storage, opts ...PersisterOption) *Persister {
	p := &Persister{
		storage:    storage,
		identity:   ContextIdentity{},
		clock:      SystemClock{},
		ids:        UUIDGenerator{},
		collection: DefaultCollection,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.notifier == nil {
		p.notifier = LogNotifier{Logger: p.logger}
	}
	return p
}

// Collection returns the target collection name.
func (p *Persister) Collection() string { return p.collection }

// Persist saves a draft that needs no review acknowledgement.
func (p *Persister) Persist(ctx context.Context, draft Draft, result ProcessedResult) (PersistedRecord, error) {
	return p.Save(ctx, SaveRequest{Draft: draft, Result: result})
}

// Save normalizes req.Draft, validates it and writes it with a single Put.
// Nothing is written when any step fails.
func (p *Persister) Save(ctx context.Context, req SaveRequest) (PersistedRecord, error) {
	rec, err := p.BuildRecord(ctx, req)
	if err != nil {
		p.notifier.Notify(ctx, "Save failed: "+err.Error(), NoticeError)
		return PersistedRecord{}, err
	}

	if p.schema != nil {
		if res := p.schema.ValidateRecord(rec); !res.Valid {
			err := &FatalError{Errors: []SemanticError{
				ClassifyKind(KindSchemaValidationFailed, "record does not match schema: "+strings.Join(res.Errors, "; ")),
			}}
			p.logger.ErrorContext(ctx, "persist.schema_invalid", "record_id", rec.ID, "errors", res.Errors)
			p.notifier.Notify(ctx, "Save failed: record does not match the storage schema", NoticeError)
			return PersistedRecord{}, err
		}
	}

	if err := p.storage.Put(ctx, p.collection, rec); err != nil {
		p.logger.ErrorContext(ctx, "persist.failed", "record_id", rec.ID, "error", err)
		p.notifier.Notify(ctx, "Save failed: "+MapError(err).Message, NoticeError)
		return PersistedRecord{}, fmt.Errorf("store record: %w", err)
	}

	p.logger.InfoContext(ctx, "persist.ok",
		"record_id", rec.ID,
		"collection", p.collection,
		"layers", rec.Metadata.StrataSummary.LayerCount,
		"edits", rec.Metadata.ExtractionSource.EditCount,
	)
	p.notifier.Notify(ctx, fmt.Sprintf("Saved %d layers for %s", rec.Metadata.StrataSummary.LayerCount, rec.Metadata.BoreID), NoticeSuccess)
	return rec, nil
}

// BuildRecord applies the save rules and returns the record that Save
// would write, without writing it.
func (p *Persister) BuildRecord(ctx context.Context, req SaveRequest) (PersistedRecord, error) {
	result := req.Result
	if !result.CanProceed {
		return PersistedRecord{}, &FatalError{Errors: result.Fatal}
	}
	if !result.AutoSaveAllowed && !req.ReviewAcknowledged {
		return PersistedRecord{}, ErrReviewNotAcknowledged
	}

	draft := req.Draft
	if v := ValidateUserEdits(draft.Layers); !v.Valid {
		return PersistedRecord{}, &ValidationFailedError{Errors: v.Errors, Warnings: v.Warnings}
	}

	unit := draft.Metadata.DepthUnit
	layers, problems := normalizeLayers(draft.Layers, unit)
	if len(problems) > 0 {
		return PersistedRecord{}, &ValidationFailedError{Errors: problems}
	}

	meta := draft.Metadata
	now := p.clock.Now().UTC()

	createdBy := anonymousUser
	if u := p.identity.CurrentUser(ctx); u != nil && u.ID != "" {
		createdBy = u.ID
	}

	boreID := strings.TrimSpace(meta.BoreID)
	if boreID == "" {
		boreID = strings.TrimSuffix(filepath.Base(meta.Filename), filepath.Ext(meta.Filename))
	}

	method := meta.Method
	if method == "" {
		method = SourceExcelImport
	}

	extractedAt := ""
	if !meta.ExtractionTimestamp.IsZero() {
		extractedAt = meta.ExtractionTimestamp.UTC().Format(time.RFC3339)
	}

	rec := PersistedRecord{
		ID:       p.ids.UID(recordPrefix),
		Project:  meta.Project,
		Filename: meta.Filename,
		Files:    []string{},
		Metadata: RecordMetadata{
			BoreID:        boreID,
			Date:          now.Format("2006-01-02"),
			WaterLevel:    toFeetPtr(meta.WaterLevel, unit),
			Coordinates:   meta.Coordinates,
			Tags:          recordTags(method),
			Notes:         meta.Notes,
			CreatedAt:     now.Format(time.RFC3339),
			CreatedBy:     createdBy,
			StrataLayers:  layers,
			StrataSummary: summarize(layers, toFeetPtr(meta.TotalDepth, unit)),
			ExtractionSource: ExtractionSource{
				Method:          method,
				Filename:        meta.Filename,
				ExtractedAt:     extractedAt,
				ConfidenceScore: result.ConfidenceScore,
				ReviewForced:    result.MustForceReview,
				EditCount:       len(req.Edits),
				WarningCount:    len(result.Warnings),
				OriginalUnit:    unit,
			},
		},
	}
	return rec, nil
}

// normalizeLayers converts to feet, rounds, sanitizes materials and orders
// by start depth. Problems are reported per layer.
func normalizeLayers(in []Layer, unit DepthUnit) ([]Layer, []ValidationError) {
	var problems []ValidationError
	out := make([]Layer, 0, len(in))

	for i, l := range in {
		start := Round2(unit.ToFeet(l.StartDepth))
		end := Round2(unit.ToFeet(l.EndDepth))

		ok := true
		for _, d := range []struct {
			field string
			v     float64
		}{{"startDepth", start}, {"endDepth", end}} {
			switch {
			case !isFinite(d.v):
				problems = append(problems, ValidationError{Index: i, Field: d.field, Message: "depth must be a finite number"})
				ok = false
			case d.v < 0:
				problems = append(problems, ValidationError{Index: i, Field: d.field, Value: formatDepth(d.v), Message: "depth must not be negative"})
				ok = false
			case d.v > MaxDepthFeet:
				problems = append(problems, ValidationError{Index: i, Field: d.field, Value: formatDepth(d.v),
					Message: fmt.Sprintf("depth exceeds %s ft", formatDepth(MaxDepthFeet))})
				ok = false
			}
		}
		if ok && start >= end {
			problems = append(problems, ValidationError{Index: i, Field: "depths", Value: interval(start, end),
				Message: "layer is thinner than 0.01 ft after conversion"})
			ok = false
		}

		material, err := SanitizeMaterial(l.Material)
		if err != nil {
			problems = append(problems, ValidationError{Index: i, Field: "material", Value: l.Material, Message: err.Error()})
			ok = false
		}
		if !ok {
			continue
		}

		stored := l
		stored.StartDepth = start
		stored.EndDepth = end
		stored.Material = material
		if l.OriginalColor != nil {
			c := *l.OriginalColor
			stored.OriginalColor = &c
		}
		out = append(out, stored)
	}

	slices.SortStableFunc(out, func(a, b Layer) int {
		switch {
		case a.StartDepth < b.StartDepth:
			return -1
		case a.StartDepth > b.StartDepth:
			return 1
		default:
			return 0
		}
	})
	return out, problems
}

func summarize(layers []Layer, total *float64) StrataSummary {
	s := StrataSummary{
		DepthUnit:  CanonicalUnit,
		LayerCount: len(layers),
		Materials:  []string{},
	}
	seen := make(map[string]bool)
	for _, l := range layers {
		if !seen[l.Material] {
			seen[l.Material] = true
			s.Materials = append(s.Materials, l.Material)
		}
	}
	s.MaterialCount = len(s.Materials)

	switch {
	case total != nil:
		s.TotalDepth = *total
	case len(layers) > 0:
		s.TotalDepth = layers[len(layers)-1].EndDepth
	}
	return s
}

func recordTags(method Source) []string {
	tags := []string{TagStrataExtraction, TagImported}
	if m := string(method); m != "" && !slices.Contains(tags, m) {
		tags = append(tags, m)
	}
	return tags
}

func toFeetPtr(v *float64, unit DepthUnit) *float64 {
	if v == nil {
		return nil
	}
	f := Round2(unit.ToFeet(*v))
	return &f
}
