package config

import (
	"strings"
	"unicode"

	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	FHIRConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	IsDev() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	FHIR
}

// New loads configuration from the environment, overlaid on a ".env" file in
// the working directory when one exists.
func New() Config {
	return FromViper(Load(".env"))
}

// Load builds a viper instance with every default registered. A missing
// config file is not an error.
func Load(configFile string) *viper.Viper {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("env")
	}
	v.AutomaticEnv()
	setDefaults(v)

	// Try reading the config file, but don't fail if missing
	_ = v.ReadInConfig()
	return v
}

// FromViper wraps an already populated viper instance.
func FromViper(v *viper.Viper) Config {
	return mainConfig{
		EnvVars: EnvVars{v: v},
		Cors:    Cors{v: v},
		OAuth:   OAuth{v: v},
		FHIR:    FHIR{v: v},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(portEnvVar, "3000")
	v.SetDefault(appNameVar, "Epic FHIR Client")
	v.SetDefault(envVar, "DEV")
	v.SetDefault(baseURLVar, "http://localhost:3000")
	v.SetDefault(allowedOriginsVar, "http://localhost:3000")

	v.SetDefault(authorizeURLVar, "https://fhir.epic.com/interconnect-fhir-oauth/oauth2/authorize")
	v.SetDefault(tokenURLVar, "https://fhir.epic.com/interconnect-fhir-oauth/oauth2/token")
	v.SetDefault(stateVar, "1234")
	v.SetDefault(scopesVar, strings.Join(defaultScopes, " "))
	v.SetDefault(bulkScopesVar, strings.Join(defaultBulkScopes, " "))

	v.SetDefault(fhirBaseURLVar, "https://fhir.epic.com/interconnect-fhir-oauth/api/FHIR/R4")
	v.SetDefault(exportTypesVar, strings.Join(defaultExportTypes, ","))
	v.SetDefault(pollIntervalVar, "5s")
	v.SetDefault(rateLimitVar, 5)
	v.SetDefault(httpTimeoutVar, "30s")
}

// splitList splits a comma and/or whitespace separated value, dropping empty
// entries. Multi-line values collapse to their non-blank tokens.
func splitList(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}
