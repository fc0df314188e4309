package core

// extract.go turns a decoded grid into a reviewable Draft.
//
// The flow is:
//  1. DetectColumns finds the depth, material and optional end-depth columns
//  2. Correlate pairs each numeric depth with its material text or fill color
//  3. Layers are built in depth order, each ending where the next begins
//  4. Every problem met on the way is classified; Fatal aborts, anything
//     else annotates the ProcessedResult and the layers' confidence

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

const (
	// confidenceMediumBelow caps unedited layers at medium.
	confidenceMediumBelow = 0.8
	// confidenceLowBelow caps unedited layers at low.
	confidenceLowBelow = 0.5
)

// ExtractMeta is caller-supplied context for one extraction.
type ExtractMeta struct {
	Filename    string
	Project     string
	BoreID      string
	DepthUnit   DepthUnit // overrides the detected unit when set
	TotalDepth  *float64
	WaterLevel  *float64
	Coordinates *Coordinates
	Notes       string
	Method      Source // defaults to excel-import
}

// Extraction is everything produced by a successful Extract.
type Extraction struct {
	Draft       Draft           `json:"draft"`
	Result      ProcessedResult `json:"result"`
	Correlation Correlation     `json:"correlation"`
	Detection   Detection       `json:"detection"`
}

// Extractor runs detection, correlation and classification over a grid.
type Extractor struct {
	patterns PatternSet
	clock    Clock
	limiter  *ExtractionLimiter
	logger   *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithPatterns replaces the default header patterns.
func WithPatterns(p PatternSet) ExtractorOption {
	return func(e *Extractor) { e.patterns = p }
}

// WithExtractorClock sets the timestamp source for drafts.
func WithExtractorClock(c Clock) ExtractorOption {
	return func(e *Extractor) { e.clock = c }
}

// WithLimiter bounds concurrent extractions.
func WithLimiter(l *ExtractionLimiter) ExtractorOption {
	return func(e *Extractor) { e.limiter = l }
}

// WithExtractorLogger sets the logger. nil keeps slog.Default().
func WithExtractorLogger(l *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor creates an Extractor with default patterns and the system clock.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		patterns: DefaultPatterns(),
		clock:    SystemClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Patterns returns the header patterns in use.
func (e *Extractor) Patterns() PatternSet {
	return e.patterns
}

// Extract builds a draft from grid. A *FatalError is returned when nothing
// can be reviewed; an error wrapping ErrInternalConsistency signals a
// classification bug.
func (e *Extractor) Extract(ctx context.Context, grid Grid, meta ExtractMeta) (*Extraction, error) {
	release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return e.extract(ctx, grid, meta)
}

// DecodeFunc produces the grid for DecodeAndExtract.
type DecodeFunc func(ctx context.Context) (Grid, error)

// DecodeAndExtract holds one limiter slot across decode and Extract, so
// workbook decoding counts against the concurrency cap. Decode errors are
// returned as is.
func (e *Extractor) DecodeAndExtract(ctx context.Context, decode DecodeFunc, meta ExtractMeta) (*Extraction, error) {
	release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	grid, err := decode(ctx)
	if err != nil {
		return nil, err
	}
	return e.extract(ctx, grid, meta)
}

func (e *Extractor) acquire(ctx context.Context) (func(), error) {
	if e.limiter == nil {
		return func() {}, nil
	}
	if err := e.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	return e.limiter.Release, nil
}

func (e *Extractor) extract(ctx context.Context, grid Grid, meta ExtractMeta) (*Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := e.logger.With("filename", meta.Filename)

	if gridIsBlank(grid) {
		return nil, abort(NewExtractionError(KindInsufficientData, "sheet is empty"))
	}

	det := DetectColumns(grid, e.patterns)
	logger.DebugContext(ctx, "extract.detected",
		"depth", columnIndex(det.Depth),
		"material", columnIndex(det.Material),
		"end_depth", columnIndex(det.EndDepth),
		"unit", det.DepthUnit,
		"data_start_row", det.DataStartRow,
	)
	if det.Depth == nil {
		return nil, abort(NewExtractionError(KindDepthDetectionFailed, "could not detect a depth column"))
	}

	var problems []error

	unit := det.DepthUnit
	if meta.DepthUnit != "" {
		if det.UnitExplicit && meta.DepthUnit != det.DepthUnit {
			problems = append(problems, NewExtractionError(KindDepthUnitInconsistency,
				"header unit %s disagrees with requested unit %s", det.DepthUnit, meta.DepthUnit))
		}
		unit = meta.DepthUnit
	}

	from := det.DataStartRow
	depths := grid.Column(det.Depth.Index, from)
	var materials, colors, ends []string
	if det.Material != nil {
		materials = grid.Column(det.Material.Index, from)
		colors = grid.ColorColumn(det.Material.Index, from)
	} else {
		problems = append(problems, NewExtractionError(KindMaterialIdentificationFailed,
			"no material column found; layers are unidentified"))
	}
	if det.EndDepth != nil {
		ends = grid.Column(det.EndDepth.Index, from)
	}

	corr := CorrelateFrom(from, depths, materials, colors)
	for _, sk := range corr.Skipped {
		problems = append(problems, &ExtractionError{Kind: KindMinorFormattingIssues, Message: sk.Reason, Row: sk.Row})
	}
	if len(corr.Entries) == 0 {
		return nil, abort(NewExtractionError(KindInsufficientData, "no rows with a numeric depth"))
	}

	problems = append(problems, reconcileUnits(corr.Entries, unit, from)...)

	layers, layerProblems := buildLayers(corr.Entries, ends, from, meta)
	problems = append(problems, layerProblems...)
	if len(layers) == 0 {
		return nil, abort(NewExtractionError(KindInsufficientData, "no usable layers after validation"))
	}

	if det.Material != nil && corr.NoMaterial > 0 {
		problems = append(problems, NewExtractionError(KindMaterialIdentificationFailed,
			"%d rows have neither material text nor color", corr.NoMaterial))
	}
	if corr.ColorBased > corr.TextBased {
		problems = append(problems, NewExtractionError(KindConfidenceTooLow,
			"%d of %d materials identified by color only", corr.ColorBased, len(corr.Entries)))
	}
	if missing := missingMetadata(meta); len(missing) > 0 {
		problems = append(problems, NewExtractionError(KindMetadataIncomplete,
			"missing %s", strings.Join(missing, ", ")))
	}

	result := ClassifyErrors(problems)
	logger.InfoContext(ctx, "classify.result",
		"action", result.RecommendedAction,
		"score", result.ConfidenceScore,
		"fatal", len(result.Fatal),
		"recoverable", len(result.Recoverable),
		"warnings", len(result.Warnings),
	)
	if !result.CanProceed {
		return nil, &FatalError{Errors: result.Fatal}
	}
	if err := CheckReviewGate(result); err != nil {
		logger.ErrorContext(ctx, "review gate violated", "error", err)
		return nil, err
	}

	applyConfidence(layers, result.ConfidenceScore)

	method := meta.Method
	if method == "" {
		method = SourceExcelImport
	}
	draft := Draft{
		Layers: layers,
		Metadata: DraftMetadata{
			Filename:            meta.Filename,
			Project:             meta.Project,
			BoreID:              meta.BoreID,
			DepthUnit:           unit,
			TotalDepth:          meta.TotalDepth,
			WaterLevel:          meta.WaterLevel,
			Coordinates:         meta.Coordinates,
			Notes:               meta.Notes,
			Method:              method,
			ExtractionTimestamp: e.clock.Now(),
		},
	}

	return &Extraction{Draft: draft.Clone(), Result: result, Correlation: corr, Detection: det}, nil
}

// reconcileUnits converts depths whose cell suffix disagrees with the sheet
// unit and reports the disagreement.
func reconcileUnits(entries []CorrelatedEntry, unit DepthUnit, from int) []error {
	mismatched, firstRow := 0, -1
	for i := range entries {
		eu := entries[i].DepthUnit
		if eu == "" || eu == unit {
			continue
		}
		if firstRow < 0 {
			firstRow = from + entries[i].Index
		}
		mismatched++
		entries[i].Depth = convertDepth(entries[i].Depth, eu, unit)
		entries[i].DepthUnit = unit
	}
	if mismatched == 0 {
		return nil
	}
	return []error{&ExtractionError{
		Kind:    KindDepthUnitInconsistency,
		Message: fmt.Sprintf("%d depth values carry a unit other than %s and were converted", mismatched, unit),
		Row:     firstRow,
	}}
}

func convertDepth(v float64, from, to DepthUnit) float64 {
	switch {
	case from == UnitMeters && to == UnitFeet:
		return v * FeetPerMeter
	case from == UnitFeet && to == UnitMeters:
		return v / FeetPerMeter
	default:
		return v
	}
}

// buildLayers orders entries by depth and turns them into contiguous layers.
func buildLayers(entries []CorrelatedEntry, ends []string, from int, meta ExtractMeta) ([]Layer, []error) {
	var problems []error

	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b CorrelatedEntry) int { return cmp.Compare(a.Depth, b.Depth) })
	for i := range sorted {
		if sorted[i].Index != entries[i].Index {
			problems = append(problems, NewExtractionError(KindMinorFormattingIssues,
				"rows are out of order and were sorted by depth"))
			break
		}
	}

	kept := sorted[:0:0]
	for _, en := range sorted {
		row := from + en.Index
		if en.Depth < 0 {
			problems = append(problems, &ExtractionError{Kind: KindValidationError,
				Message: fmt.Sprintf("negative depth %s dropped", formatDepth(en.Depth)), Row: row})
			continue
		}
		if n := len(kept); n > 0 && kept[n-1].Depth == en.Depth {
			problems = append(problems, &ExtractionError{Kind: KindValidationError,
				Message: fmt.Sprintf("duplicate depth %s; kept the first row", formatDepth(en.Depth)), Row: row})
			continue
		}
		kept = append(kept, en)
	}
	if len(kept) == 0 {
		return nil, problems
	}

	layers := make([]Layer, len(kept))
	for i, en := range kept {
		l := Layer{
			Material:   en.Material,
			StartDepth: en.Depth,
			Confidence: ConfidenceLow,
			Source:     en.Source,
		}
		switch en.Source {
		case SourceText:
			l.Confidence = ConfidenceHigh
		case SourceColor:
		default:
			l.Material = UnidentifiedMaterial
			l.Source = meta.Method
			if l.Source == "" {
				l.Source = SourceExcelImport
			}
		}
		if en.OriginalColor != "" {
			c := en.OriginalColor
			l.OriginalColor = &c
		}

		explicit, hasExplicit := explicitEnd(ends, en.Index)
		if hasExplicit && explicit <= l.StartDepth {
			problems = append(problems, &ExtractionError{Kind: KindValidationError,
				Message: fmt.Sprintf("end depth %s is not below start depth %s", formatDepth(explicit), formatDepth(l.StartDepth)),
				Row:     from + en.Index})
			hasExplicit = false
		}

		if i+1 < len(kept) {
			next := kept[i+1].Depth
			l.EndDepth = next
			if hasExplicit {
				if explicit > next {
					problems = append(problems, &ExtractionError{Kind: KindValidationError,
						Message: fmt.Sprintf("end depth %s overlaps the next layer at %s", formatDepth(explicit), formatDepth(next)),
						Row:     from + en.Index})
				} else {
					l.EndDepth = explicit
				}
			}
		} else {
			end, problem := lastLayerEnd(kept, explicit, hasExplicit, meta.TotalDepth)
			l.EndDepth = end
			problems = append(problems, problem...)
		}
		layers[i] = l
	}
	return layers, problems
}

// lastLayerEnd picks the bottom of the deepest layer: an explicit end, the
// bore's total depth, or the median layer thickness as a last resort.
func lastLayerEnd(kept []CorrelatedEntry, explicit float64, hasExplicit bool, total *float64) (float64, []error) {
	start := kept[len(kept)-1].Depth
	if hasExplicit {
		return explicit, nil
	}

	var problems []error
	if total != nil {
		if *total > start {
			return *total, nil
		}
		problems = append(problems, NewExtractionError(KindValidationError,
			"total depth %s is not below the last layer start %s", formatDepth(*total), formatDepth(start)))
	}

	end := start + 1
	if len(kept) > 1 {
		end = start + medianInterval(kept)
	}
	problems = append(problems, NewExtractionError(KindMetadataIncomplete,
		"total depth missing; bottom of last layer estimated at %s", formatDepth(end)))
	return end, problems
}

func medianInterval(kept []CorrelatedEntry) float64 {
	gaps := make([]float64, 0, len(kept)-1)
	for i := 1; i < len(kept); i++ {
		gaps = append(gaps, kept[i].Depth-kept[i-1].Depth)
	}
	slices.Sort(gaps)
	mid := len(gaps) / 2
	if len(gaps)%2 == 0 {
		return (gaps[mid-1] + gaps[mid]) / 2
	}
	return gaps[mid]
}

func explicitEnd(ends []string, idx int) (float64, bool) {
	if idx >= len(ends) {
		return 0, false
	}
	v, _, ok := ParseDepth(ends[idx])
	return v, ok
}

// applyConfidence caps unedited layers by the overall confidence score.
func applyConfidence(layers []Layer, score float64) {
	var ceiling Confidence
	switch {
	case score < confidenceLowBelow:
		ceiling = ConfidenceLow
	case score < confidenceMediumBelow:
		ceiling = ConfidenceMedium
	default:
		return
	}
	for i := range layers {
		if !layers[i].UserEdited {
			layers[i].Confidence = layers[i].Confidence.Cap(ceiling)
		}
	}
}

func missingMetadata(meta ExtractMeta) []string {
	var missing []string
	if strings.TrimSpace(meta.BoreID) == "" {
		missing = append(missing, "bore id")
	}
	if strings.TrimSpace(meta.Project) == "" {
		missing = append(missing, "project")
	}
	return missing
}

func abort(errs ...error) error {
	return NewFatalError(errs...)
}

func gridIsBlank(grid Grid) bool {
	for _, row := range grid {
		for _, c := range row {
			if strings.TrimSpace(c.Value) != "" {
				return false
			}
		}
	}
	return true
}

func columnIndex(m *ColumnMatch) int {
	if m == nil {
		return -1
	}
	return m.Index
}
