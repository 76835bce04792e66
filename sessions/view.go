package sessions

import (
	"encoding/json"
	"time"

	"github.com/jrsteele09/epic-fhir-client/bulk"
	"github.com/jrsteele09/epic-fhir-client/fhir"
	"github.com/jrsteele09/epic-fhir-client/internal/utils"
)

// View is a point in time copy of a session for rendering
type View struct {
	ID            string         `json:"id"`
	Flow          Flow           `json:"flow"`
	Authenticated bool           `json:"authenticated"`
	PatientID     string         `json:"patientId,omitempty"`
	Scope         string         `json:"scope,omitempty"`
	TokenExpiry   *time.Time     `json:"tokenExpiry,omitempty"`
	Record        fhir.Resource  `json:"record,omitempty"`
	LastError     string         `json:"lastError,omitempty"`
	Export        *bulk.Snapshot `json:"export,omitempty"`
}

// View snapshots the session
func (s *Session) View() View {
	s.mu.Lock()
	v := View{
		ID:            s.id,
		Flow:          s.flow,
		Authenticated: s.accessToken != "",
		PatientID:     s.patientID,
		Scope:         s.scope,
		Record:        s.record,
	}
	if !s.tokenExpiry.IsZero() {
		v.TokenExpiry = utils.Ptr(s.tokenExpiry)
	}
	if s.lastError != nil {
		v.LastError = s.lastError.Error()
	}
	job := s.job
	s.mu.Unlock()

	if job != nil {
		v.Export = utils.Ptr(job.Snapshot())
	}
	return v
}

// RecordJSON renders the fetched record indented, or "" when there is none
func (v View) RecordJSON() string {
	if v.Record == nil {
		return ""
	}
	b, err := json.MarshalIndent(v.Record, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

// ExportState is the export job state, NotStarted before any submission
func (v View) ExportState() bulk.State {
	return utils.Value(v.Export).State
}

// Polling reports whether an export is being polled
func (v View) Polling() bool {
	return v.ExportState() == bulk.InProgress
}

// ExportSubmitted reports whether the export job holds a status URL
func (v View) ExportSubmitted() bool {
	return v.Export != nil && v.Export.StatusURL != ""
}
