package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/strata/internal/core"
	"github.com/JonMunkholm/strata/internal/logging"
	"github.com/JonMunkholm/strata/internal/session"
	"github.com/JonMunkholm/strata/internal/web/templates"
)

// maxEditBody bounds JSON edit requests.
const maxEditBody = 64 << 10

type materialRequest struct {
	Material string `json:"material"`
}

type depthsRequest struct {
	StartDepth *float64 `json:"startDepth"`
	EndDepth   *float64 `json:"endDepth"`
}

type splitRequest struct {
	Depth *float64 `json:"depth"`
}

type mergeRequest struct {
	First  *int `json:"first"`
	Second *int `json:"second"`
}

// SaveResponse is returned by a successful save.
type SaveResponse struct {
	RecordID string               `json:"recordId"`
	Record   core.PersistedRecord `json:"record"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondSession(w, r, http.StatusOK, snap)
}

func (s *Server) handleUpdateMaterial(w http.ResponseWriter, r *http.Request) {
	i, err := layerIndex(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req materialRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.edit(w, r, func(m *core.ReviewModel) error {
		return m.UpdateMaterial(i, req.Material)
	})
}

func (s *Server) handleUpdateDepths(w http.ResponseWriter, r *http.Request) {
	i, err := layerIndex(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req depthsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.StartDepth == nil || req.EndDepth == nil {
		s.fail(w, r, badRequest("startDepth and endDepth are required"))
		return
	}
	s.edit(w, r, func(m *core.ReviewModel) error {
		return m.UpdateDepths(i, *req.StartDepth, *req.EndDepth)
	})
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	i, err := layerIndex(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req splitRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Depth == nil {
		s.fail(w, r, badRequest("depth is required"))
		return
	}
	s.edit(w, r, func(m *core.ReviewModel) error {
		return m.SplitLayer(i, *req.Depth)
	})
}

func (s *Server) handleDeleteLayer(w http.ResponseWriter, r *http.Request) {
	i, err := layerIndex(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.edit(w, r, func(m *core.ReviewModel) error {
		return m.DeleteLayer(i)
	})
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.First == nil || req.Second == nil {
		s.fail(w, r, badRequest("first and second are required"))
		return
	}
	s.edit(w, r, func(m *core.ReviewModel) error {
		return m.MergeLayers(*req.First, *req.Second)
	})
}

// handleValidate reports the layer checks a save would run, without saving.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var result core.ValidationResult
	err := s.with(r, func(m *core.ReviewModel) error {
		result = m.Validate()
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	s.edit(w, r, func(m *core.ReviewModel) error {
		return m.AcknowledgeReview()
	})
}

// handleSave confirms the draft and closes the session on success. On
// failure the session stays open with its edits so the client can retry.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var rec core.PersistedRecord
	err := s.with(r, func(m *core.ReviewModel) error {
		var err error
		rec, err = m.ConfirmAndSave(r.Context())
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.deps.Sessions.Close(id)

	logging.WithFields(r.Context(), "session_id", id).Info("review.saved", "record_id", rec.ID)
	writeJSONStatus(w, http.StatusCreated, SaveResponse{RecordID: rec.ID, Record: rec})
}

// handleCancelSession rejects the draft. Nothing is written.
func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.with(r, func(m *core.ReviewModel) error {
		return m.Cancel()
	})
	if err != nil && !errors.Is(err, core.ErrSessionClosed) {
		s.fail(w, r, err)
		return
	}
	s.deps.Sessions.Close(id)
	w.WriteHeader(http.StatusNoContent)
}

// edit applies fn and replies with the updated session.
func (s *Server) edit(w http.ResponseWriter, r *http.Request, fn func(*core.ReviewModel) error) {
	if err := s.with(r, fn); err != nil {
		s.fail(w, r, err)
		return
	}
	snap, err := s.snapshot(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondSession(w, r, http.StatusOK, snap)
}

// with runs fn on the session named in the route. A session owned by
// another user is reported as not found.
func (s *Server) with(r *http.Request, fn func(*core.ReviewModel) error) error {
	if _, err := s.snapshot(r); err != nil {
		return err
	}
	return s.deps.Sessions.With(chi.URLParam(r, "id"), fn)
}

func (s *Server) snapshot(r *http.Request) (session.Snapshot, error) {
	snap, err := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		return session.Snapshot{}, err
	}
	if snap.Owner != "" && snap.Owner != ownerOf(r) {
		return session.Snapshot{}, session.ErrSessionNotFound
	}
	return snap, nil
}

func (s *Server) respondSession(w http.ResponseWriter, r *http.Request, status int, snap session.Snapshot) {
	if isHTMX(r) {
		s.renderReview(w, r, status, snap)
		return
	}
	writeJSONStatus(w, status, snap)
}

func (s *Server) renderReview(w http.ResponseWriter, r *http.Request, status int, snap session.Snapshot) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	view := templates.ReviewView{
		SessionID:  snap.ID,
		Filename:   snap.Draft.Metadata.Filename,
		State:      snap.State,
		Layers:     snap.Draft.Layers,
		Result:     snap.Result,
		Validation: snap.Validation,
	}
	if err := templates.ReviewPanel(view).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render review", "error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxEditBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("malformed JSON body: %v", err)
	}
	return nil
}
