package oauth2

import "time"

// TokenResponse represents the response from the authorization server's token endpoint
// after a successful authorization_code exchange (RFC 6749 section 5.1), extended with
// the SMART on FHIR launch context returned by Epic.
type TokenResponse struct {
	// AccessToken is the bearer credential presented on every FHIR request.
	// Example: "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9..."
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// TokenType indicates how to use the access token.
	// Example: "Bearer"
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Example: 3600
	// Note: When absent, the expiry is read from the token's "exp" claim if it is a JWT
	ExpiresIn int `json:"expires_in,omitempty"`

	// Scope indicates the access token's granted permissions.
	// Example: "Patient.read Patient.search"
	// Note: May be less than requested if some scopes were denied
	Scope string `json:"scope,omitempty"`

	// Patient is the FHIR id of the patient in context for this token.
	// Example: "eq081-VQEgP8drUUqCWzHfw3"
	// Usage: Scopes subsequent single-resource reads (Patient/<id>)
	// Only present: For patient-facing launches
	Patient string `json:"patient,omitempty"`

	// Expiry is the absolute expiry derived from ExpiresIn or the JWT "exp" claim.
	// Zero when unknown.
	Expiry time.Time `json:"-"`
}

// HasPatientContext reports whether the token response names a patient
func (t *TokenResponse) HasPatientContext() bool {
	return t != nil && t.Patient != ""
}
