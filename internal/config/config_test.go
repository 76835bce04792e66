package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/epic-fhir-client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	c := config.FromViper(config.Load(""))

	require.Equal(t, ":3000", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.True(t, c.IsDev())
	require.Equal(t, "1234", c.GetState())
	require.Equal(t, 5*time.Second, c.GetPollInterval())
	require.Equal(t, 30*time.Second, c.GetHTTPTimeout())
	require.Equal(t, []string{"Patient", "Encounter", "MedicationRequest", "AllergyIntolerance", "Observation"}, c.GetExportTypes())
	require.Equal(t, "https://fhir.epic.com/interconnect-fhir-oauth/api/FHIR/R4", c.GetFHIRBaseURL())

	home := c.GetHomeFlow()
	require.Equal(t, "http://localhost:3000", home.RedirectURI)
	require.Contains(t, home.Scopes, "Observation.read.vitals")
	require.Len(t, home.Scopes, 12)

	bulk := c.GetBulkFlow()
	require.Equal(t, "http://localhost:3000/bulk", bulk.RedirectURI)
	require.Equal(t, "system/Patient.read", bulk.Scopes[0])
}

func TestConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", ":8081")
	t.Setenv("ENV", "production")
	t.Setenv("BASE_URL", "https://client.example.com/")
	t.Setenv("CLIENT_ID", "home-client")
	t.Setenv("BULK_CLIENT_ID", "bulk-client")
	t.Setenv("SCOPES", "Patient.read\n\t  Patient.search\n")
	t.Setenv("EXPORT_TYPES", "Patient, Observation")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("FHIR_RATE_LIMIT", "-1")

	c := config.FromViper(config.Load(""))

	require.Equal(t, ":8081", c.GetPort())
	require.False(t, c.IsDev())
	require.Equal(t, "home-client", c.GetHomeFlow().ClientID)
	require.Equal(t, []string{"Patient.read", "Patient.search"}, c.GetHomeFlow().Scopes)
	require.Equal(t, "https://client.example.com", c.GetHomeFlow().RedirectURI)
	require.Equal(t, "bulk-client", c.GetBulkFlow().ClientID)
	require.Equal(t, "https://client.example.com/bulk", c.GetBulkFlow().RedirectURI)
	require.Equal(t, []string{"Patient", "Observation"}, c.GetExportTypes())
	require.Equal(t, 250*time.Millisecond, c.GetPollInterval())
	require.Zero(t, c.GetRateLimit())
}

func TestConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("BULK_CLIENT_ID=from-file\nALLOWED_ORIGINS=http://a.test,http://b.test/\n"), 0o600))

	c := config.FromViper(config.Load(path))

	require.Equal(t, "from-file", c.GetBulkFlow().ClientID)
	origins := c.GetAllowedOrigins()
	require.True(t, origins.IsAllowedOrigin("http://a.test"))
	require.True(t, origins.IsAllowedOrigin("http://b.test"))
	require.Equal(t, "http://a.test, http://b.test", origins.String())
}

func TestNew_ReadsDotEnvInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BULK_CLIENT_ID=dotenv-client\n"), 0o600))
	t.Chdir(dir)

	c := config.New()
	require.Equal(t, "dotenv-client", c.GetBulkFlow().ClientID)
}

func TestNew_WithoutDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())

	c := config.New()
	require.Equal(t, ":3000", c.GetPort())
}
