package server

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/jrsteele09/epic-fhir-client/bulk"
	apperrors "github.com/jrsteele09/epic-fhir-client/internal/errors"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json"

// BulkPageHandler renders the bulk export page. While the export is polled the
// page refreshes itself at the poll interval.
func (s *Server) BulkPageHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("bulk.html")
	if err != nil {
		panic("Failed to parse bulk template: " + err.Error())
	}
	refresh := int(math.Ceil(s.config.GetPollInterval().Seconds()))
	if refresh < 1 {
		refresh = 1
	}

	return func(w http.ResponseWriter, r *http.Request) {
		session := s.bulk.Current()
		_ = session.HandleRedirect(r.Context(), r.URL.Query())

		data := PageData{
			AppName:        s.config.GetAppName(),
			View:           session.View(),
			RefreshSeconds: refresh,
		}
		w.Header().Set("Content-Type", contentTypeHTML)
		w.Header().Set("Cache-Control", "no-store")
		if err := tmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render bulk page")
		}
	}
}

// BulkExportHandler submits the export job of the bulk session
func (s *Server) BulkExportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := s.bulk.Current()
		if err := session.StartExport(r.Context()); err != nil && !apperrors.Is(err, apperrors.ErrNotAuthenticated) {
			// kept as the session's last error and shown on the page
			logError(r.Method, r.URL.Path, err.Error())
		}
		http.Redirect(w, r, RouteBulk, http.StatusSeeOther)
	}
}

// BulkStatus is the JSON body of the status endpoint
type BulkStatus struct {
	Session       string         `json:"session"`
	Authenticated bool           `json:"authenticated"`
	State         bulk.State     `json:"state"`
	Export        *bulk.Snapshot `json:"export,omitempty"`
	Links         []bulk.Link    `json:"links"`
	LastError     string         `json:"lastError,omitempty"`
}

// BulkStatusHandler reports the bulk session's job as JSON
func (s *Server) BulkStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := s.bulk.Current().View()
		status := BulkStatus{
			Session:       view.ID,
			Authenticated: view.Authenticated,
			State:         view.ExportState(),
			Export:        view.Export,
			Links:         []bulk.Link{},
			LastError:     view.LastError,
		}
		if view.Export != nil {
			status.Links = view.Export.Links()
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Err(err).Msg("Failed to encode bulk status")
		}
	}
}
