package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/epic-fhir-client/auth"
	"github.com/jrsteele09/epic-fhir-client/auth/coderepo"
	apperrors "github.com/jrsteele09/epic-fhir-client/internal/errors"
	"github.com/stretchr/testify/require"
)

// tokenServer is a fake token endpoint recording every request it receives
type tokenServer struct {
	*httptest.Server
	calls    atomic.Int32
	mu       sync.Mutex
	lastForm map[string]string
	lastCT   string
}

func newTokenServer(t *testing.T, status int, body map[string]any) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		require.NoError(t, r.ParseForm())

		ts.mu.Lock()
		ts.lastCT = r.Header.Get("Content-Type")
		ts.lastForm = map[string]string{}
		for k := range r.PostForm {
			ts.lastForm[k] = r.PostForm.Get(k)
		}
		ts.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newExchanger(t *testing.T, tokenURL string) *auth.Exchanger {
	t.Helper()
	e, err := auth.NewExchanger(testFlow(tokenURL), coderepo.NewInMemoryRepo())
	require.NoError(t, err)
	return e
}

func TestExchanger_Exchange(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, map[string]any{
		"access_token": "abc",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"scope":        "Patient.read",
		"patient":      "42",
	})
	e := newExchanger(t, ts.URL)

	resp, err := e.Exchange(context.Background(), "code-1")
	require.NoError(t, err)
	require.Equal(t, "abc", resp.AccessToken)
	require.Equal(t, "42", resp.Patient)
	require.True(t, resp.HasPatientContext())
	require.Equal(t, "Patient.read", resp.Scope)
	require.Equal(t, 3600, resp.ExpiresIn)
	require.WithinDuration(t, time.Now().Add(time.Hour), resp.Expiry, time.Minute)

	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.Equal(t, "application/x-www-form-urlencoded", ts.lastCT)
	require.Equal(t, map[string]string{
		"grant_type":   "authorization_code",
		"code":         "code-1",
		"redirect_uri": testRedirectURI,
		"client_id":    testClientID,
	}, ts.lastForm)
}

func TestExchanger_SameCodeExchangedOnce(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, map[string]any{"access_token": "abc"})
	e := newExchanger(t, ts.URL)

	_, err := e.Exchange(context.Background(), "code-1")
	require.NoError(t, err)

	_, err = e.Exchange(context.Background(), "code-1")
	require.ErrorIs(t, err, apperrors.ErrCodeConsumed)
	require.Equal(t, int32(1), ts.calls.Load())

	_, err = e.Exchange(context.Background(), "code-2")
	require.NoError(t, err)
	require.Equal(t, int32(2), ts.calls.Load())
}

func TestExchanger_ConcurrentDuplicatesSuppressed(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, map[string]any{"access_token": "abc"})
	e := newExchanger(t, ts.URL)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Exchange(context.Background(), "rapid-code")
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), ts.calls.Load())
}

func TestExchanger_Failures(t *testing.T) {
	t.Run("empty code", func(t *testing.T) {
		ts := newTokenServer(t, http.StatusOK, map[string]any{"access_token": "abc"})
		e := newExchanger(t, ts.URL)

		_, err := e.Exchange(context.Background(), "  ")
		require.ErrorIs(t, err, apperrors.ErrInvalidAuthorizationCode)
		require.Zero(t, ts.calls.Load())
	})

	t.Run("rejected code", func(t *testing.T) {
		ts := newTokenServer(t, http.StatusBadRequest, map[string]any{
			"error":             "invalid_grant",
			"error_description": "code expired",
		})
		e := newExchanger(t, ts.URL)

		resp, err := e.Exchange(context.Background(), "expired")
		require.ErrorIs(t, err, apperrors.ErrAuthExchange)
		require.Nil(t, resp)

		// no automatic retry, and the code stays consumed
		_, err = e.Exchange(context.Background(), "expired")
		require.ErrorIs(t, err, apperrors.ErrCodeConsumed)
		require.Equal(t, int32(1), ts.calls.Load())
	})

	t.Run("missing access token", func(t *testing.T) {
		ts := newTokenServer(t, http.StatusOK, map[string]any{"patient": "42"})
		e := newExchanger(t, ts.URL)

		_, err := e.Exchange(context.Background(), "code")
		require.ErrorIs(t, err, apperrors.ErrAuthExchange)
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		ts := newTokenServer(t, http.StatusOK, map[string]any{"access_token": "abc"})
		url := ts.URL
		ts.Close()
		e := newExchanger(t, url)

		_, err := e.Exchange(context.Background(), "code")
		require.ErrorIs(t, err, apperrors.ErrAuthExchange)
	})
}

func TestExchanger_ExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(20 * time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	ts := newTokenServer(t, http.StatusOK, map[string]any{"access_token": signed})
	e := newExchanger(t, ts.URL)

	resp, err := e.Exchange(context.Background(), "code")
	require.NoError(t, err)
	require.True(t, exp.Equal(resp.Expiry))
	require.Zero(t, resp.ExpiresIn)
}

func TestNewExchanger_RequiresRepo(t *testing.T) {
	_, err := auth.NewExchanger(testFlow("https://fhir.example.com/oauth2/token"), nil)
	require.Error(t, err)
}

func TestExchanger_ForgetConsumedBefore(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, map[string]any{"access_token": "abc"})
	now := time.Now()
	e, err := auth.NewExchanger(testFlow(ts.URL), coderepo.NewInMemoryRepo(),
		auth.WithNowTime(func() time.Time { return now.Add(-2 * time.Hour) }))
	require.NoError(t, err)

	_, err = e.Exchange(context.Background(), "old-code")
	require.NoError(t, err)
	require.True(t, e.Consumed("old-code"))

	require.NoError(t, e.ForgetConsumedBefore(now.Add(-time.Hour)))
	require.False(t, e.Consumed("old-code"))
}
