package fhir

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/jrsteele09/epic-fhir-client/internal/errors"
	"github.com/rs/zerolog/log"
)

// Bulk data headers
const (
	HeaderContentLocation = "Content-Location"
	HeaderProgress        = "X-Progress"
	HeaderRetryAfter      = "Retry-After"
	HeaderPrefer          = "Prefer"
	PreferRespondAsync    = "respond-async"
)

// ExportOutputFile is one entry of the output or error array of a completed export
type ExportOutputFile struct {
	Type  string `json:"type"`
	URL   string `json:"url"`
	Count int    `json:"count,omitempty"`
}

// ExportManifest is the body of a completed export status response
type ExportManifest struct {
	TransactionTime     string             `json:"transactionTime"`
	Request             string             `json:"request"`
	RequiresAccessToken bool               `json:"requiresAccessToken"`
	Output              []ExportOutputFile `json:"output"`
	Error               []ExportOutputFile `json:"error"`
}

// ExportStatus is the result of one status check
type ExportStatus struct {
	StatusCode int
	// Complete is set when the server returned a manifest with an output array.
	Complete bool
	Progress string
	Manifest *ExportManifest
}

// KickOffExport starts a system level $export for the given resource types and returns
// the status URL the server answered with in Content-Location.
func (c *Client) KickOffExport(ctx context.Context, token string, types []string) (string, error) {
	if token == "" {
		return "", apperrors.ErrNotAuthenticated
	}

	endpoint := c.baseURL + "/$export"
	if len(types) > 0 {
		escaped := make([]string, 0, len(types))
		for _, t := range types {
			escaped = append(escaped, url.QueryEscape(strings.TrimSpace(t)))
		}
		endpoint += "?_type=" + strings.Join(escaped, ",")
	}

	resp, err := c.do(ctx, token, http.MethodGet, endpoint, map[string]string{
		"Accept":     MediaTypeFHIRJSON,
		HeaderPrefer: PreferRespondAsync,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrSubmission, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %w", apperrors.ErrSubmission, statusError(resp))
	}

	statusURL := resp.Header.Get(HeaderContentLocation)
	if statusURL == "" {
		return "", fmt.Errorf("%w: response carried no %s header", apperrors.ErrSubmission, HeaderContentLocation)
	}

	log.Info().Str("status_url", statusURL).Strs("types", types).Msg("Bulk export accepted")
	return statusURL, nil
}

// ExportStatus performs one status check against statusURL.
//
// A 202, or a 200 without an output array, reports a pending export. An error status
// with a non-transient OperationOutcome body returns *OperationOutcomeError. Any other
// outcome, transient OperationOutcomes included, is wrapped as ErrPoll.
func (c *Client) ExportStatus(ctx context.Context, token, statusURL string) (*ExportStatus, error) {
	if token == "" {
		return nil, apperrors.ErrNotAuthenticated
	}

	resp, err := c.do(ctx, token, http.MethodGet, statusURL, map[string]string{"Accept": MediaTypeJSON})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrPoll, err)
	}
	defer resp.Body.Close()

	status := &ExportStatus{
		StatusCode: resp.StatusCode,
		Progress:   resp.Header.Get(HeaderProgress),
	}

	switch {
	case resp.StatusCode == http.StatusAccepted:
		return status, nil

	case resp.StatusCode == http.StatusOK:
		var manifest ExportManifest
		if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
			return nil, fmt.Errorf("%w: decoding manifest: %w", apperrors.ErrPoll, err)
		}
		// a JSON array (even empty) decodes to a non-nil slice
		if manifest.Output != nil {
			status.Complete = true
			status.Manifest = &manifest
		}
		return status, nil

	case resp.StatusCode >= 400:
		err := statusError(resp)
		var outcome *OperationOutcomeError
		if apperrors.As(err, &outcome) && !outcome.Transient() {
			return nil, outcome
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrPoll, err)

	default:
		return nil, fmt.Errorf("%w: unexpected status %d", apperrors.ErrPoll, resp.StatusCode)
	}
}
