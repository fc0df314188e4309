package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/strata/internal/core"
)

// ownerOf returns the acting user id for session ownership, "" if anonymous.
func ownerOf(r *http.Request) string {
	if u := core.UserFromContext(r.Context()); u != nil {
		return u.ID
	}
	return ""
}

// layerIndex parses the {index} route parameter.
func layerIndex(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 {
		return 0, badRequest("layer index %q must be a non-negative integer", raw)
	}
	return i, nil
}

// optionalFloat parses a form value that may be blank.
func optionalFloat(r *http.Request, name string) (*float64, error) {
	raw := r.FormValue(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, badRequest("%s must be a number", name)
	}
	return &v, nil
}
