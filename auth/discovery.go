package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/epic-fhir-client/internal/config"
	"github.com/rs/zerolog/log"
	goauth2 "golang.org/x/oauth2"
)

// Discover reads the issuer's OpenID configuration and returns its authorize and
// token endpoints, for deployments that configure an issuer instead of static URLs
func Discover(ctx context.Context, issuer string) (goauth2.Endpoint, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return goauth2.Endpoint{}, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	endpoint := provider.Endpoint()
	endpoint.AuthStyle = goauth2.AuthStyleInParams

	log.Info().Str("issuer", issuer).Str("authorize_url", endpoint.AuthURL).Str("token_url", endpoint.TokenURL).Msg("Discovered OAuth endpoints")
	return endpoint, nil
}

// ResolveEndpoint returns the discovered endpoints when an issuer is configured,
// otherwise the static authorize and token URLs
func ResolveEndpoint(ctx context.Context, oauthConfig config.OAuthConfig) (goauth2.Endpoint, error) {
	if issuer := oauthConfig.GetIssuer(); issuer != "" {
		return Discover(ctx, issuer)
	}
	return goauth2.Endpoint{
		AuthURL:   oauthConfig.GetAuthorizeURL(),
		TokenURL:  oauthConfig.GetTokenURL(),
		AuthStyle: goauth2.AuthStyleInParams,
	}, nil
}
