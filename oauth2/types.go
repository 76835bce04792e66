package oauth2

// Redirect parameters returned by the authorization server on the redirect URI
const (
	ParamState            = "state"
	ParamCode             = "code"
	ParamError            = "error"
	ParamErrorDescription = "error_description"
)

// Token response fields read beyond the access token itself
const (
	// ExtraPatient is the non-standard token response field carrying the patient id
	ExtraPatient   = "patient"
	ExtraScope     = "scope"
	ExtraExpiresIn = "expires_in"
)
