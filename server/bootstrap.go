package server

import (
	"context"

	"github.com/jrsteele09/epic-fhir-client/auth"
	"github.com/jrsteele09/epic-fhir-client/fhir"
	"github.com/jrsteele09/epic-fhir-client/internal/config"
	apperrors "github.com/jrsteele09/epic-fhir-client/internal/errors"
	"github.com/jrsteele09/epic-fhir-client/sessions"
	"github.com/rs/zerolog/log"
)

// Bootstrap resolves the OAuth endpoints, builds the shared FHIR client and wires
// the session builders of both flows
func Bootstrap(ctx context.Context, c config.Config) (home, bulk *sessions.Builder, err error) {
	endpoint, err := auth.ResolveEndpoint(ctx, c)
	if err != nil {
		return nil, nil, apperrors.Wrapf(err, "failed to resolve OAuth endpoints")
	}

	client, err := fhir.NewClientFromConfig(c)
	if err != nil {
		return nil, nil, apperrors.Wrapf(err, "failed to create FHIR client")
	}

	home, err = sessions.NewBuilder(sessions.HomeFlow, c, endpoint, client)
	if err != nil {
		return nil, nil, apperrors.Wrapf(err, "failed to bootstrap home flow")
	}
	bulk, err = sessions.NewBuilder(sessions.BulkFlow, c, endpoint, client)
	if err != nil {
		return nil, nil, apperrors.Wrapf(err, "failed to bootstrap bulk flow")
	}

	log.Info().
		Str("authorize_url", endpoint.AuthURL).
		Str("token_url", endpoint.TokenURL).
		Str("fhir_base_url", client.BaseURL()).
		Msg("Bootstrap complete")
	return home, bulk, nil
}
