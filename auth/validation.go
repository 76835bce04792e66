package auth

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/jrsteele09/epic-fhir-client/internal/errors"
	"github.com/jrsteele09/epic-fhir-client/oauth2"
)

// RedirectResult is what the authorization server handed back on the redirect URI
type RedirectResult struct {
	Code  string
	State string
}

// HasCode reports whether the redirect carried an authorization code
func (r RedirectResult) HasCode() bool {
	return r.Code != ""
}

// ParseRedirect inspects the query of a redirect back from the authorization server.
//
// An error parameter is returned as ErrAuthorizationDenied. A state that is present
// but differs from expectedState is returned as ErrStateMismatch. A query without a
// code (an ordinary page view) returns an empty result and no error.
func ParseRedirect(query url.Values, expectedState string) (RedirectResult, error) {
	if errParam := query.Get(oauth2.ParamError); errParam != "" {
		desc := strings.TrimSpace(query.Get(oauth2.ParamErrorDescription))
		if desc == "" {
			return RedirectResult{}, fmt.Errorf("%w: %s", apperrors.ErrAuthorizationDenied, errParam)
		}
		return RedirectResult{}, fmt.Errorf("%w: %s - %s", apperrors.ErrAuthorizationDenied, errParam, desc)
	}

	result := RedirectResult{
		Code:  strings.TrimSpace(query.Get(oauth2.ParamCode)),
		State: query.Get(oauth2.ParamState),
	}
	if !result.HasCode() {
		return RedirectResult{}, nil
	}

	if result.State != "" && expectedState != "" && result.State != expectedState {
		return RedirectResult{}, apperrors.ErrStateMismatch
	}
	return result, nil
}
