package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"carpnav/internal/solver"
	"carpnav/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	// Outcome is the solver classification for solve failures.
	Outcome string `json:"outcome,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeError maps err onto a problem response by its category.
func writeError(w http.ResponseWriter, err error, instance string) {
	status, title := statusFor(err)
	p := Problem{Type: "about:blank", Title: title, Status: status, Detail: err.Error(), Instance: instance}
	if !isStoreError(err) {
		p.Outcome = solver.Outcome(err)
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

func isStoreError(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidCursor)
}

func statusFor(err error) (int, string) {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "Not Found"
	}
	if errors.Is(err, store.ErrInvalidCursor) {
		return http.StatusBadRequest, "Invalid cursor"
	}
	switch solver.Outcome(err) {
	case "invalid":
		return http.StatusBadRequest, "Invalid instance"
	case "infeasible", "unreachable":
		return http.StatusUnprocessableEntity, "Instance cannot be served"
	case "timeout":
		return http.StatusGatewayTimeout, "Time budget exceeded"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}
