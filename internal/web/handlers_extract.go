package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/strata/internal/core"
	"github.com/JonMunkholm/strata/internal/logging"
	"github.com/JonMunkholm/strata/internal/sheet"
)

const (
	// multipartMemory is how much of an upload is buffered in memory
	// before spilling to a temp file.
	multipartMemory = 8 << 20
	// formOverhead leaves room for the non-file form fields.
	formOverhead = 1 << 20
)

// ExtractResponse is returned by POST /api/extract.
type ExtractResponse struct {
	SessionID  string                `json:"sessionId"`
	State      core.ReviewState      `json:"state"`
	Draft      core.Draft            `json:"draft"`
	Result     core.ProcessedResult  `json:"result"`
	Validation core.ValidationResult `json:"validation"`
	Detection  core.Detection        `json:"detection"`
}

// handleExtract decodes an uploaded log, extracts a draft and opens a
// review session over it. Fatal extraction problems are a 422 carrying the
// fatal errors; nothing is opened.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	maxSize := s.deps.Decoder.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+formOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.fail(w, r, fmt.Errorf("%w: upload exceeds %d bytes", sheet.ErrFileTooLarge, maxSize))
			return
		}
		s.fail(w, r, badRequest("expected a multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, errNoFile)
		return
	}
	defer file.Close()

	meta, err := extractMeta(r, header.Filename)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ctx := r.Context()
	if s.cfg.Extraction.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Extraction.Timeout)
		defer cancel()
	}
	logger := logging.WithFields(ctx, "filename", header.Filename)

	decode := func(ctx context.Context) (core.Grid, error) {
		grid, err := s.deps.Decoder.Decode(ctx, header.Filename, file)
		if err != nil {
			return nil, fatalFromDecode(err)
		}
		return grid, nil
	}
	ext, err := s.deps.Extractor.DecodeAndExtract(ctx, decode, meta)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	model, err := core.NewReviewModel(ext.Draft, ext.Result, s.deps.Persister, core.WithReviewLogger(logger))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id := s.deps.Sessions.Open(model, ownerOf(r))

	logger.Info("extract.accepted",
		"session_id", id,
		"layers", len(ext.Draft.Layers),
		"confidence", ext.Result.ConfidenceScore,
		"action", ext.Result.RecommendedAction,
	)

	snap, err := s.deps.Sessions.Get(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if isHTMX(r) {
		s.renderReview(w, r, http.StatusCreated, snap)
		return
	}
	writeJSONStatus(w, http.StatusCreated, ExtractResponse{
		SessionID:  id,
		State:      snap.State,
		Draft:      snap.Draft,
		Result:     snap.Result,
		Validation: snap.Validation,
		Detection:  ext.Detection,
	})
}

// fatalFromDecode turns a typed decode failure into a FatalError so the
// client sees the same body as for extraction failures. Size and context
// errors pass through.
func fatalFromDecode(err error) error {
	var ee *core.ExtractionError
	if errors.As(err, &ee) {
		return core.NewFatalError(ee)
	}
	return err
}

// extractMeta reads the optional form fields describing the bore.
func extractMeta(r *http.Request, filename string) (core.ExtractMeta, error) {
	meta := core.ExtractMeta{
		Filename: filename,
		Project:  strings.TrimSpace(r.FormValue("project")),
		BoreID:   strings.TrimSpace(r.FormValue("boreId")),
		Notes:    strings.TrimSpace(r.FormValue("notes")),
	}

	if raw := r.FormValue("depthUnit"); raw != "" {
		unit, ok := core.ParseDepthUnit(raw)
		if !ok {
			return meta, badRequest("depthUnit %q must be feet or meters", raw)
		}
		meta.DepthUnit = unit
	}

	var err error
	if meta.TotalDepth, err = optionalFloat(r, "totalDepth"); err != nil {
		return meta, err
	}
	if meta.TotalDepth != nil && *meta.TotalDepth <= 0 {
		return meta, badRequest("totalDepth must be positive")
	}
	if meta.WaterLevel, err = optionalFloat(r, "waterLevel"); err != nil {
		return meta, err
	}

	lat, err := optionalFloat(r, "lat")
	if err != nil {
		return meta, err
	}
	lng, err := optionalFloat(r, "lng")
	if err != nil {
		return meta, err
	}
	switch {
	case lat != nil && lng != nil:
		meta.Coordinates = &core.Coordinates{Lat: *lat, Lng: *lng}
	case lat != nil || lng != nil:
		return meta, badRequest("lat and lng must be given together")
	}
	return meta, nil
}
