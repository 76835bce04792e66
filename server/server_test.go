package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/epic-fhir-client/bulk"
	"github.com/jrsteele09/epic-fhir-client/internal/config"
	"github.com/jrsteele09/epic-fhir-client/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEpic serves the token endpoint and the FHIR API the client talks to
type fakeEpic struct {
	*httptest.Server
	tokenCalls   atomic.Int32
	patientCalls atomic.Int32
	statusPolls  atomic.Int32
}

func newFakeEpic(t *testing.T) *fakeEpic {
	t.Helper()
	f := &fakeEpic{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		body := map[string]any{"access_token": "abc", "token_type": "Bearer", "expires_in": 3600}
		if r.PostForm.Get("client_id") == "home-client" {
			body["patient"] = "42"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("GET /fhir/Patient/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.patientCalls.Add(1)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"resourceType": "Patient",
			"id":           r.PathValue("id"),
			"name":         []any{map[string]any{"text": "Jason Argonaut"}},
		})
	})
	mux.HandleFunc("GET /fhir/$export", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "respond-async", r.Header.Get("Prefer"))
		w.Header().Set("Content-Location", f.URL+"/status/1")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /status/1", func(w http.ResponseWriter, r *http.Request) {
		n := f.statusPolls.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"output": []any{
				map[string]any{"type": "Patient", "url": "https://x/Patient.ndjson"},
				map[string]any{"type": "Observation", "url": "https://x/"},
			},
		})
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func newTestServer(t *testing.T, f *fakeEpic) *server.Server {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("CLIENT_ID", "home-client")
	t.Setenv("BULK_CLIENT_ID", "bulk-client")
	t.Setenv("EPIC_ISSUER", "")
	t.Setenv("EPIC_AUTHORIZE_URL", f.URL+"/oauth2/authorize")
	t.Setenv("EPIC_TOKEN_URL", f.URL+"/oauth2/token")
	t.Setenv("FHIR_BASE_URL", f.URL+"/fhir")
	t.Setenv("POLL_INTERVAL", "10ms")
	t.Setenv("FHIR_RATE_LIMIT", "0")
	t.Setenv("ALLOWED_ORIGINS", "http://allowed.example.com")

	c := config.FromViper(config.Load(""))
	home, bulk, err := server.Bootstrap(context.Background(), c)
	require.NoError(t, err)
	s, err := server.New(c, home, bulk)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func do(s *server.Server, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func bulkStatus(t *testing.T, s *server.Server) server.BulkStatus {
	t.Helper()
	rec := do(s, http.MethodGet, "/bulk/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status server.BulkStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	return status
}

func TestHomePage_NotAuthenticated(t *testing.T) {
	s := newTestServer(t, newFakeEpic(t))

	rec := do(s, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Connect to Epic")
	require.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
}

func TestLogin_RedirectsToAuthorizeURL(t *testing.T) {
	f := newFakeEpic(t)
	s := newTestServer(t, f)

	rec := do(s, http.MethodGet, "/login", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	location := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, f.URL+"/oauth2/authorize?"))
	require.NotContains(t, location, "+")

	u, err := url.Parse(location)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "home-client", q.Get("client_id"))
	require.Equal(t, "http://localhost:3000", q.Get("redirect_uri"))
	require.Equal(t, "1234", q.Get("state"))

	rec = do(s, http.MethodGet, "/bulk/login", nil)
	u, err = url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "bulk-client", u.Query().Get("client_id"))
	require.Equal(t, "http://localhost:3000/bulk", u.Query().Get("redirect_uri"))
	require.Contains(t, u.Query().Get("scope"), "system/Patient.read")
}

func TestHomePage_RedirectExchangesAndFetchesPatient(t *testing.T) {
	f := newFakeEpic(t)
	s := newTestServer(t, f)

	rec := do(s, http.MethodGet, "/?code=code-1&state=1234", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "Access Token Obtained!")
	require.Contains(t, body, "Patient Record:")
	require.Contains(t, body, "Jason Argonaut")

	// rendering the same redirect again does not redeem the code twice
	rec = do(s, http.MethodGet, "/?code=code-1&state=1234", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int32(1), f.tokenCalls.Load())
	require.Equal(t, int32(1), f.patientCalls.Load())
}

func TestHomePage_RedirectErrorsAreShown(t *testing.T) {
	f := newFakeEpic(t)
	s := newTestServer(t, f)

	rec := do(s, http.MethodGet, "/?error=access_denied&error_description=denied+by+user", nil)
	require.Contains(t, rec.Body.String(), "access_denied - denied by user")

	rec = do(s, http.MethodGet, "/?code=code-1&state=forged", nil)
	require.Contains(t, rec.Body.String(), "state parameter mismatch")
	require.Zero(t, f.tokenCalls.Load())
}

func TestReset_StartsFreshSession(t *testing.T) {
	f := newFakeEpic(t)
	s := newTestServer(t, f)

	do(s, http.MethodGet, "/?code=code-1&state=1234", nil)

	rec := do(s, http.MethodPost, "/reset", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))

	rec = do(s, http.MethodGet, "/", nil)
	require.Contains(t, rec.Body.String(), "Connect to Epic")

	// the fresh session still refuses a code redeemed before the reset
	rec = do(s, http.MethodGet, "/?code=code-1&state=1234", nil)
	require.Contains(t, rec.Body.String(), "Connect to Epic")
	require.Equal(t, int32(1), f.tokenCalls.Load())
}

func TestBulkExport_EndToEnd(t *testing.T) {
	f := newFakeEpic(t)
	s := newTestServer(t, f)

	// export without a token does nothing
	rec := do(s, http.MethodPost, "/bulk/export", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, bulk.NotStarted, bulkStatus(t, s).State)

	rec = do(s, http.MethodGet, "/bulk?code=bulk-code&state=1234", nil)
	require.Contains(t, rec.Body.String(), "Start Bulk Export")
	require.Zero(t, f.patientCalls.Load())

	rec = do(s, http.MethodPost, "/bulk/export", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/bulk", rec.Header().Get("Location"))

	status := bulkStatus(t, s)
	require.True(t, status.Authenticated)
	require.Equal(t, bulk.InProgress, status.State)
	require.Equal(t, f.URL+"/status/1", status.Export.StatusURL)

	rec = do(s, http.MethodGet, "/bulk", nil)
	require.Contains(t, rec.Body.String(), `http-equiv="refresh"`)
	require.Contains(t, rec.Body.String(), "Status: In Progress")

	require.Eventually(t, func() bool {
		return bulkStatus(t, s).State == bulk.Completed
	}, 2*time.Second, 10*time.Millisecond)

	status = bulkStatus(t, s)
	require.Equal(t, []bulk.Link{
		{Label: "Patient.ndjson", URL: "https://x/Patient.ndjson"},
		{Label: "File 2", URL: "https://x/"},
	}, status.Links)

	rec = do(s, http.MethodGet, "/bulk", nil)
	body := rec.Body.String()
	require.Contains(t, body, "Status: Completed")
	require.Contains(t, body, ">Patient.ndjson</a>")
	require.NotContains(t, body, `http-equiv="refresh"`)

	polls := f.statusPolls.Load()
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, polls, f.statusPolls.Load())
}

func TestBulkReset_StopsPolling(t *testing.T) {
	f := newFakeEpic(t)
	s := newTestServer(t, f)

	do(s, http.MethodGet, "/bulk?code=bulk-code&state=1234", nil)
	do(s, http.MethodPost, "/bulk/export", nil)
	require.Eventually(t, func() bool { return f.statusPolls.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)

	rec := do(s, http.MethodPost, "/bulk/reset", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	status := bulkStatus(t, s)
	require.False(t, status.Authenticated)
	require.Equal(t, bulk.NotStarted, status.State)
	require.Empty(t, status.Links)
}

func TestBulkStatus_Cors(t *testing.T) {
	s := newTestServer(t, newFakeEpic(t))

	rec := do(s, http.MethodOptions, "/bulk/status", map[string]string{"Origin": "http://allowed.example.com"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://allowed.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))

	rec = do(s, http.MethodGet, "/bulk/status", map[string]string{"Origin": "http://evil.example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBootstrap_InvalidFHIRBaseURL(t *testing.T) {
	t.Setenv("CLIENT_ID", "home-client")
	t.Setenv("BULK_CLIENT_ID", "bulk-client")
	t.Setenv("EPIC_ISSUER", "")
	t.Setenv("FHIR_BASE_URL", "not a url")

	_, _, err := server.Bootstrap(context.Background(), config.FromViper(config.Load("")))
	require.ErrorContains(t, err, "failed to create FHIR client")
}
