package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/civiclab/socrata-import/internal/store"
	"github.com/go-chi/chi/v5"
)

// triggerRequest is the body for the trigger and preview endpoints.
type triggerRequest struct {
	URL string `json:"url"`
}

// triggerResponse acknowledges a started import.
type triggerResponse struct {
	DatasetID string              `json:"dataset_id"`
	Table     string              `json:"table"`
	RunID     string              `json:"run_id"`
	StatusURL string              `json:"status_url"`
	Import    *store.ImportRecord `json:"import,omitempty"`
}

// handleStartImport triggers an import and answers 202 once the run is
// underway. It lingers for the configured grace period so that small
// datasets are usually already finished when the caller follows the
// status URL.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTrigger(w, r)
	if !ok {
		return
	}

	handle, terr := s.service.Start(r.Context(), req.URL)
	if terr != nil {
		respondTriggerError(w, r, terr)
		return
	}

	select {
	case <-handle.Done():
	case <-time.After(s.service.GracePeriod()):
	case <-r.Context().Done():
	}

	resp := triggerResponse{
		DatasetID: handle.DatasetID,
		Table:     handle.Table,
		RunID:     handle.RunID,
		StatusURL: "/api/imports/" + handle.DatasetID,
	}
	if rec, err := s.service.Status(r.Context(), handle.DatasetID); err == nil {
		resp.Import = rec
	}
	respondJSON(w, http.StatusAccepted, resp)
}

// handleGetImport returns the current import record for a dataset id.
// Callers poll it to watch rows_written climb.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")

	rec, err := s.service.Status(r.Context(), datasetID)
	if errors.Is(err, store.ErrNotFound) {
		respondJSON(w, http.StatusNotFound, ErrorResponse{
			Error: "no import exists for this dataset",
			Kind:  "not_found",
		})
		return
	}
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error: "destination store unavailable",
			Kind:  "admission",
		})
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// handleListImports returns the snapshot of all import records.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"imports": s.service.Statuses(),
	})
}

// handlePreview validates a dataset reference without importing it.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTrigger(w, r)
	if !ok {
		return
	}

	_, preview, terr := s.service.Validate(r.Context(), req.URL)
	if terr != nil {
		respondTriggerError(w, r, terr)
		return
	}
	respondJSON(w, http.StatusOK, preview)
}

// handleHealth reports liveness and the number of runs in flight.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"active_imports": s.service.ActiveCount(),
	})
}

func decodeTrigger(w http.ResponseWriter, r *http.Request) (triggerRequest, bool) {
	var req triggerRequest
	if strings.Contains(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		req.URL = r.FormValue("url")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.URL = ""
	}
	if req.URL == "" {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "request must carry a non-empty \"url\" (JSON body or form field)",
			Kind:  "address",
		})
		return triggerRequest{}, false
	}
	return req, true
}
