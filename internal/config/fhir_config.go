package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	fhirBaseURLVar  = "FHIR_BASE_URL"
	exportTypesVar  = "EXPORT_TYPES"
	pollIntervalVar = "POLL_INTERVAL"
	rateLimitVar    = "FHIR_RATE_LIMIT"
	httpTimeoutVar  = "HTTP_TIMEOUT"

	defaultPollInterval = 5 * time.Second
	defaultHTTPTimeout  = 30 * time.Second
)

var defaultExportTypes = []string{
	"Patient",
	"Encounter",
	"MedicationRequest",
	"AllergyIntolerance",
	"Observation",
}

type FHIRConfig interface {
	GetFHIRBaseURL() string
	GetExportTypes() []string
	GetPollInterval() time.Duration
	GetRateLimit() float64
	GetHTTPTimeout() time.Duration
}

type FHIR struct {
	v *viper.Viper
}

var _ FHIRConfig = FHIR{}

func (f FHIR) GetFHIRBaseURL() string {
	return strings.TrimRight(f.v.GetString(fhirBaseURLVar), "/")
}

// GetExportTypes returns the resource types requested by a bulk export, in
// the order they are sent as the _type parameter
func (f FHIR) GetExportTypes() []string {
	return splitList(f.v.GetString(exportTypesVar))
}

func (f FHIR) GetPollInterval() time.Duration {
	interval := f.v.GetDuration(pollIntervalVar)
	if interval <= 0 {
		return defaultPollInterval
	}
	return interval
}

// GetRateLimit returns the outbound FHIR request rate in requests per second.
// Zero disables throttling.
func (f FHIR) GetRateLimit() float64 {
	limit := f.v.GetFloat64(rateLimitVar)
	if limit < 0 {
		return 0
	}
	return limit
}

func (f FHIR) GetHTTPTimeout() time.Duration {
	timeout := f.v.GetDuration(httpTimeoutVar)
	if timeout <= 0 {
		return defaultHTTPTimeout
	}
	return timeout
}
