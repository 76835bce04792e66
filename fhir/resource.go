package fhir

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/epic-fhir-client/internal/utils"
)

// Resource is a decoded FHIR resource. It is kept as a generic document and
// replaced wholesale when re-fetched.
type Resource map[string]any

// ResourceType returns the resourceType element, or "" when absent
func (r Resource) ResourceType() string {
	s, _ := r["resourceType"].(string)
	return s
}

// ID returns the logical id of the resource
func (r Resource) ID() string {
	s, _ := r["id"].(string)
	return s
}

// DisplayName returns a human readable name for Patient-like resources,
// built from the first entry of the name element
func (r Resource) DisplayName() string {
	names, ok := r["name"].([]any)
	if !ok || len(names) == 0 {
		return ""
	}
	name, ok := names[0].(map[string]any)
	if !ok {
		return ""
	}
	if text, ok := name["text"].(string); ok && text != "" {
		return text
	}

	var parts []string
	if given, ok := name["given"].([]any); ok {
		parts = utils.ToStringSlice(given)
	}
	if family, ok := name["family"].(string); ok {
		parts = append(parts, family)
	}
	return strings.Join(parts, " ")
}

// OperationOutcome is the FHIR resource servers return to describe a failed operation
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

// OperationOutcomeIssue is a single issue of an OperationOutcome
type OperationOutcomeIssue struct {
	Severity    string `json:"severity"`
	Code        string `json:"code"`
	Diagnostics string `json:"diagnostics,omitempty"`
	Details     *struct {
		Text string `json:"text,omitempty"`
	} `json:"details,omitempty"`
}

// Summary joins the diagnostics (or details text) of every issue
func (o OperationOutcome) Summary() string {
	msgs := make([]string, 0, len(o.Issue))
	for _, issue := range o.Issue {
		switch {
		case issue.Diagnostics != "":
			msgs = append(msgs, issue.Diagnostics)
		case issue.Details != nil && issue.Details.Text != "":
			msgs = append(msgs, issue.Details.Text)
		case issue.Code != "":
			msgs = append(msgs, issue.Code)
		}
	}
	return strings.Join(msgs, "; ")
}

// transientIssueCodes are the issue types a server uses for conditions that may clear on retry
var transientIssueCodes = map[string]bool{
	"transient":  true,
	"throttled":  true,
	"timeout":    true,
	"lock-error": true,
	"no-store":   true,
	"incomplete": true,
}

// OperationOutcomeError is returned when a server answers with an error status
// and an OperationOutcome body
type OperationOutcomeError struct {
	StatusCode int
	Outcome    OperationOutcome
	// RetryAfter is the raw Retry-After header of the response, if any
	RetryAfter string
}

// Transient reports whether the server signalled a temporary condition: a 429 or 503
// status, or an issue of a transient type
func (e *OperationOutcomeError) Transient() bool {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable {
		return true
	}
	for _, issue := range e.Outcome.Issue {
		if transientIssueCodes[issue.Code] {
			return true
		}
	}
	return false
}

func (e *OperationOutcomeError) Error() string {
	if summary := e.Outcome.Summary(); summary != "" {
		return fmt.Sprintf("operation outcome (status %d): %s", e.StatusCode, summary)
	}
	return fmt.Sprintf("operation outcome (status %d)", e.StatusCode)
}
