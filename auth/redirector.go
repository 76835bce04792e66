package auth

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
	goauth2 "golang.org/x/oauth2"
)

// Redirector builds the authorization URL a user agent is sent to in order to start
// the authorization-code flow. Control comes back through the flow's redirect URI
// carrying either a code or an error parameter.
type Redirector struct {
	config FlowConfig
	oauth  *goauth2.Config
}

// NewRedirector validates the flow and creates a Redirector for it
func NewRedirector(config FlowConfig) (*Redirector, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "[NewRedirector] invalid flow configuration")
	}
	return &Redirector{
		config: config,
		oauth:  config.oauth2Config(),
	}, nil
}

// URL returns the full authorization URL with response_type, redirect_uri,
// client_id, state and a space delimited scope list percent-encoded as %20
func (r *Redirector) URL() string {
	authURL := r.oauth.AuthCodeURL(r.config.State)

	u, err := url.Parse(authURL)
	if err != nil {
		return authURL
	}
	// Values.Encode writes spaces as '+'; every literal '+' is already %2B
	u.RawQuery = strings.ReplaceAll(u.RawQuery, "+", "%20")
	return u.String()
}

// State returns the anti-forgery value sent with the authorization request
func (r *Redirector) State() string {
	return r.config.State
}
