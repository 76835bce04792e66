package config

import (
	"github.com/spf13/viper"
)

const (
	issuerVar       = "EPIC_ISSUER"
	authorizeURLVar = "EPIC_AUTHORIZE_URL"
	tokenURLVar     = "EPIC_TOKEN_URL"
	stateVar        = "OAUTH_STATE"

	clientIDVar        = "CLIENT_ID"
	redirectURIVar     = "REDIRECT_URI"
	scopesVar          = "SCOPES"
	bulkClientIDVar    = "BULK_CLIENT_ID"
	bulkRedirectURIVar = "BULK_REDIRECT_URI"
	bulkScopesVar      = "BULK_SCOPES"

	// BulkRedirectPath is appended to the base URL when BULK_REDIRECT_URI is unset
	BulkRedirectPath = "/bulk"
)

var defaultScopes = []string{
	"Patient.read", "Patient.search",
	"Encounter.read", "Encounter.search",
	"MedicationRequest.read", "MedicationRequest.search",
	"AllergyIntolerance.read", "AllergyIntolerance.search",
	"Observation.read.labs", "Observation.search.labs",
	"Observation.read.vitals", "Observation.search.vitals",
}

var defaultBulkScopes = []string{
	"system/Patient.read",
	"system/Observation.read",
	"system/MedicationRequest.read",
	"system/AllergyIntolerance.read",
	"system/Encounter.read",
}

// FlowSettings is the per-deployment client identity of one login flow
type FlowSettings struct {
	ClientID    string
	RedirectURI string
	Scopes      []string
}

type OAuthConfig interface {
	GetIssuer() string
	GetAuthorizeURL() string
	GetTokenURL() string
	GetState() string
	GetHomeFlow() FlowSettings
	GetBulkFlow() FlowSettings
}

type OAuth struct {
	v *viper.Viper
}

var _ OAuthConfig = OAuth{}

// GetIssuer returns the OIDC issuer used for endpoint discovery. Empty means
// the static authorize and token URLs are used.
func (o OAuth) GetIssuer() string {
	return o.v.GetString(issuerVar)
}

func (o OAuth) GetAuthorizeURL() string {
	return o.v.GetString(authorizeURLVar)
}

func (o OAuth) GetTokenURL() string {
	return o.v.GetString(tokenURLVar)
}

func (o OAuth) GetState() string {
	return o.v.GetString(stateVar)
}

func (o OAuth) GetHomeFlow() FlowSettings {
	redirect := o.v.GetString(redirectURIVar)
	if redirect == "" {
		redirect = EnvVars(o).GetBaseURL()
	}
	return FlowSettings{
		ClientID:    o.v.GetString(clientIDVar),
		RedirectURI: redirect,
		Scopes:      splitList(o.v.GetString(scopesVar)),
	}
}

func (o OAuth) GetBulkFlow() FlowSettings {
	redirect := o.v.GetString(bulkRedirectURIVar)
	if redirect == "" {
		redirect = EnvVars(o).GetBaseURL() + BulkRedirectPath
	}
	return FlowSettings{
		ClientID:    o.v.GetString(bulkClientIDVar),
		RedirectURI: redirect,
		Scopes:      splitList(o.v.GetString(bulkScopesVar)),
	}
}
