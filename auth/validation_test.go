package auth_test

import (
	"net/url"
	"testing"

	"github.com/jrsteele09/epic-fhir-client/auth"
	apperrors "github.com/jrsteele09/epic-fhir-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestParseRedirect(t *testing.T) {
	t.Run("code with matching state", func(t *testing.T) {
		res, err := auth.ParseRedirect(url.Values{"code": {"abc"}, "state": {"1234"}}, "1234")
		require.NoError(t, err)
		require.True(t, res.HasCode())
		require.Equal(t, "abc", res.Code)
	})

	t.Run("code without state", func(t *testing.T) {
		res, err := auth.ParseRedirect(url.Values{"code": {"abc"}}, "1234")
		require.NoError(t, err)
		require.Equal(t, "abc", res.Code)
	})

	t.Run("plain page view", func(t *testing.T) {
		res, err := auth.ParseRedirect(url.Values{}, "1234")
		require.NoError(t, err)
		require.False(t, res.HasCode())
	})

	t.Run("state mismatch", func(t *testing.T) {
		_, err := auth.ParseRedirect(url.Values{"code": {"abc"}, "state": {"evil"}}, "1234")
		require.ErrorIs(t, err, apperrors.ErrStateMismatch)
	})

	t.Run("authorization error", func(t *testing.T) {
		_, err := auth.ParseRedirect(url.Values{
			"error":             {"access_denied"},
			"error_description": {"user cancelled"},
		}, "1234")
		require.ErrorIs(t, err, apperrors.ErrAuthorizationDenied)
		require.Contains(t, err.Error(), "access_denied - user cancelled")
	})
}
