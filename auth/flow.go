package auth

import (
	"net/url"
	"strings"

	"github.com/jrsteele09/epic-fhir-client/internal/config"
	"github.com/pkg/errors"
	goauth2 "golang.org/x/oauth2"
)

// FlowConfig is the static client identity and endpoints of one authorization-code flow.
// The same RedirectURI must be used for the authorize redirect and the token exchange.
type FlowConfig struct {
	ClientID     string
	RedirectURI  string
	Scopes       []string
	State        string
	AuthorizeURL string
	TokenURL     string
}

// NewFlowConfig combines one flow's client settings with the shared endpoints
func NewFlowConfig(settings config.FlowSettings, oauthConfig config.OAuthConfig) FlowConfig {
	return FlowConfig{
		ClientID:     settings.ClientID,
		RedirectURI:  settings.RedirectURI,
		Scopes:       NormalizeScopes(settings.Scopes),
		State:        oauthConfig.GetState(),
		AuthorizeURL: oauthConfig.GetAuthorizeURL(),
		TokenURL:     oauthConfig.GetTokenURL(),
	}
}

// WithEndpoint returns a copy of the flow using the given authorize and token endpoints
func (c FlowConfig) WithEndpoint(endpoint goauth2.Endpoint) FlowConfig {
	c.AuthorizeURL = endpoint.AuthURL
	c.TokenURL = endpoint.TokenURL
	return c
}

// Validate checks the fields both the redirector and the exchanger depend on
func (c FlowConfig) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return errors.New("[FlowConfig] client id is required")
	}
	if _, err := url.ParseRequestURI(c.RedirectURI); err != nil {
		return errors.Wrap(err, "[FlowConfig] invalid redirect uri")
	}
	if _, err := url.ParseRequestURI(c.AuthorizeURL); err != nil {
		return errors.Wrap(err, "[FlowConfig] invalid authorize url")
	}
	if _, err := url.ParseRequestURI(c.TokenURL); err != nil {
		return errors.Wrap(err, "[FlowConfig] invalid token url")
	}
	return nil
}

func (c FlowConfig) oauth2Config() *goauth2.Config {
	return &goauth2.Config{
		ClientID:    c.ClientID,
		RedirectURL: c.RedirectURI,
		Scopes:      NormalizeScopes(c.Scopes),
		Endpoint: goauth2.Endpoint{
			AuthURL:  c.AuthorizeURL,
			TokenURL: c.TokenURL,
			// client_id travels in the form body; there is no client secret
			AuthStyle: goauth2.AuthStyleInParams,
		},
	}
}

// NormalizeScopes strips all embedded whitespace from the configured scopes.
// An entry holding several whitespace separated scopes (for example a
// multi-line value) is split into its individual scopes.
func NormalizeScopes(scopes []string) []string {
	normalized := make([]string, 0, len(scopes))
	for _, entry := range scopes {
		normalized = append(normalized, strings.Fields(entry)...)
	}
	return normalized
}
