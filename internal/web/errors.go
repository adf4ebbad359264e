package web

// errors.go maps orchestrator trigger failures onto HTTP responses.
//
// Every tagged kind has one status: a malformed reference is the
// caller's fault (400), a missing dataset is 404 while a metadata
// transport fault is an upstream failure (502), an unavailable store
// is 503, and a duplicate trigger for a running import is 409.

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/civiclab/socrata-import/internal/importer"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// respondTriggerError writes the response for a tagged trigger failure
// and logs it with the request id for correlation.
func respondTriggerError(w http.ResponseWriter, r *http.Request, terr *importer.Error) {
	status := triggerStatus(terr)

	slog.Error("import trigger rejected",
		"path", r.URL.Path,
		"status", status,
		"kind", terr.Kind,
		"error", terr.Message,
		"request_id", middleware.GetReqID(r.Context()),
	)

	respondJSON(w, status, ErrorResponse{Error: terr.Message, Kind: string(terr.Kind)})
}

func triggerStatus(terr *importer.Error) int {
	switch terr.Kind {
	case importer.KindAddress:
		return http.StatusBadRequest
	case importer.KindMetadata:
		if terr.NotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case importer.KindAdmission:
		return http.StatusServiceUnavailable
	case importer.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
