package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	portEnvVar = "PORT"
	appNameVar = "APP_NAME"
	envVar     = "ENV"
	baseURLVar = "BASE_URL"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.v.GetString(portEnvVar)
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(appNameVar)
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.v.GetString(envVar))
}

func (e EnvVars) IsDev() bool {
	return e.GetEnv() == "DEV"
}

// GetBaseURL returns the public base URL of this client (e.g., "http://localhost:3000")
// Redirect URIs default to paths below it
func (e EnvVars) GetBaseURL() string {
	return strings.TrimRight(e.v.GetString(baseURLVar), "/")
}
