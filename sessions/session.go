package sessions

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/epic-fhir-client/auth"
	"github.com/jrsteele09/epic-fhir-client/bulk"
	"github.com/jrsteele09/epic-fhir-client/fhir"
	apperrors "github.com/jrsteele09/epic-fhir-client/internal/errors"
	"github.com/jrsteele09/epic-fhir-client/oauth2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Flow distinguishes the two client registrations
type Flow string

const (
	// HomeFlow is the patient-facing login followed by a Patient read
	HomeFlow Flow = "home"
	// BulkFlow is the backend login followed by a bulk $export
	BulkFlow Flow = "bulk"
)

// TokenExchanger trades an authorization code for a token response
type TokenExchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.TokenResponse, error)
}

// FHIRClient is what a session needs from the FHIR server
type FHIRClient interface {
	bulk.Exporter
	Read(ctx context.Context, token, resourceType, id string) (fhir.Resource, error)
}

// Session is the in-memory state of one flow: the access token, the fetched
// record and the export job. It is created when the page mounts and torn down
// with Close.
type Session struct {
	id           string
	flow         Flow
	redirector   *auth.Redirector
	exchanger    TokenExchanger
	client       FHIRClient
	exportTypes  []string
	pollInterval time.Duration
	createdAt    time.Time

	mu          sync.Mutex
	accessToken string
	patientID   string
	scope       string
	tokenExpiry time.Time
	record      fhir.Resource
	lastError   error
	job         *bulk.Job
	closed      bool
}

// SessionOption defines a function type to modify the Session instance.
type SessionOption func(*Session)

// WithExportTypes sets the resource types requested by StartExport
func WithExportTypes(types []string) SessionOption {
	return func(s *Session) {
		s.exportTypes = types
	}
}

// WithPollInterval sets the export status poll interval
func WithPollInterval(interval time.Duration) SessionOption {
	return func(s *Session) {
		s.pollInterval = interval
	}
}

// New creates a session for one flow
func New(flow Flow, redirector *auth.Redirector, exchanger TokenExchanger, client FHIRClient, options ...SessionOption) (*Session, error) {
	if flow != HomeFlow && flow != BulkFlow {
		return nil, errors.Errorf("[sessions.New] unknown flow %q", flow)
	}
	if redirector == nil {
		return nil, errors.New("[sessions.New] redirector is required")
	}
	if exchanger == nil {
		return nil, errors.New("[sessions.New] exchanger is required")
	}
	if client == nil {
		return nil, errors.New("[sessions.New] FHIR client is required")
	}

	s := &Session{
		id:           uuid.NewString(),
		flow:         flow,
		redirector:   redirector,
		exchanger:    exchanger,
		client:       client,
		pollInterval: bulk.DefaultPollInterval,
		createdAt:    time.Now(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Flow() Flow { return s.flow }

// AuthorizeURL is where the browser is sent to log in
func (s *Session) AuthorizeURL() string {
	return s.redirector.URL()
}

// HandleRedirect processes the query of a redirect back from the authorization server.
// A query without a code is a plain page view. A code delivered again (reload, duplicate
// render) is ignored. On a home flow token carrying a patient, the Patient is read once.
func (s *Session) HandleRedirect(ctx context.Context, query url.Values) error {
	result, err := auth.ParseRedirect(query, s.redirector.State())
	if err != nil {
		s.setLastError(err)
		return err
	}
	if !result.HasCode() {
		return nil
	}

	token, err := s.exchanger.Exchange(ctx, result.Code)
	if apperrors.Is(err, apperrors.ErrCodeConsumed) {
		log.Debug().Str("session_id", s.id).Msg("Authorization code already exchanged, ignoring")
		return nil
	}
	if err != nil {
		log.Err(err).Str("session_id", s.id).Str("flow", string(s.flow)).Msg("Token exchange failed")
		s.setLastError(err)
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.accessToken = token.AccessToken
	s.patientID = token.Patient
	s.scope = token.Scope
	s.tokenExpiry = token.Expiry
	s.lastError = nil
	s.mu.Unlock()

	log.Info().Str("session_id", s.id).Str("flow", string(s.flow)).Bool("patient_context", token.HasPatientContext()).Msg("Access token obtained")

	if s.flow == HomeFlow && token.HasPatientContext() {
		return s.FetchRecord(ctx, "Patient", token.Patient)
	}
	return nil
}

// FetchRecord reads one resource and replaces the session record with it.
// On failure the previous record is kept and the error is recorded.
func (s *Session) FetchRecord(ctx context.Context, resourceType, id string) error {
	token := s.token()
	if token == "" {
		return apperrors.ErrNotAuthenticated
	}

	record, err := s.client.Read(ctx, token, resourceType, id)
	if err != nil {
		log.Err(err).Str("session_id", s.id).Str("resource", resourceType+"/"+id).Msg("Resource fetch failed")
		s.setLastError(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.record = record
		s.lastError = nil
	}
	return nil
}

// StartExport submits the bulk export job, creating it on first use. Once a job
// holds a status URL further calls do nothing.
func (s *Session) StartExport(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	token := s.accessToken
	if token == "" {
		s.mu.Unlock()
		return apperrors.ErrNotAuthenticated
	}
	if s.job == nil {
		job, err := bulk.NewJob(s.client, s.exportTypes, bulk.WithPollInterval(s.pollInterval))
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
		}
		s.job = job
	}
	job := s.job
	s.mu.Unlock()

	if err := job.Submit(ctx, token); err != nil {
		s.setLastError(err)
		return err
	}
	return nil
}

// Job returns the export job, or nil before StartExport
func (s *Session) Job() *bulk.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job
}

// Token returns the current access token, or "" when not authenticated
func (s *Session) Token() string {
	return s.token()
}

func (s *Session) token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// LastError is the most recent failure, cleared by the next success
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *Session) setLastError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.lastError = err
	}
}

// Close tears the session down and stops any export polling
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	job := s.job
	s.mu.Unlock()

	if job != nil {
		job.Close()
	}
	log.Debug().Str("session_id", s.id).Str("flow", string(s.flow)).Msg("Session closed")
}
