package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/epic-fhir-client/auth/coderepo"
	apperrors "github.com/jrsteele09/epic-fhir-client/internal/errors"
	"github.com/jrsteele09/epic-fhir-client/oauth2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	goauth2 "golang.org/x/oauth2"
)

const defaultExchangeTimeout = 30 * time.Second

// Exchanger trades authorization codes for access tokens at the token endpoint.
// Every code is sent at most once, however many times Exchange is called with it.
type Exchanger struct {
	config     FlowConfig
	oauth      *goauth2.Config
	codes      coderepo.Repo
	httpClient *http.Client
	nowTime    func() time.Time
}

// ExchangerOption defines a function type to modify the Exchanger instance.
type ExchangerOption func(*Exchanger)

// WithHTTPClient sets the client used to reach the token endpoint
func WithHTTPClient(client *http.Client) ExchangerOption {
	return func(e *Exchanger) {
		e.httpClient = client
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ExchangerOption {
	return func(e *Exchanger) {
		e.nowTime = nowFunc
	}
}

// NewExchanger initializes an Exchanger for one flow. The code repo is what
// makes repeated exchanges of the same code no-ops.
func NewExchanger(config FlowConfig, codes coderepo.Repo, options ...ExchangerOption) (*Exchanger, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "[NewExchanger] invalid flow configuration")
	}
	if codes == nil {
		return nil, errors.New("[NewExchanger] code repo is required")
	}

	e := &Exchanger{
		config:     config,
		oauth:      config.oauth2Config(),
		codes:      codes,
		httpClient: &http.Client{Timeout: defaultExchangeTimeout},
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(e)
	}
	return e, nil
}

// Exchange posts grant_type=authorization_code, code, redirect_uri and client_id as a
// form to the token endpoint. A code that was already exchanged (successfully or not)
// returns ErrCodeConsumed without a request. Failures are not retried.
func (e *Exchanger) Exchange(ctx context.Context, code string) (*oauth2.TokenResponse, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.ErrInvalidAuthorizationCode
	}

	first, err := e.codes.Consume(code, coderepo.ConsumedCode{
		ClientID:   e.config.ClientID,
		ConsumedAt: e.nowTime(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrAuthExchange, err)
	}
	if !first {
		return nil, apperrors.ErrCodeConsumed
	}

	log.Debug().Str("client_id", e.config.ClientID).Str("token_url", e.config.TokenURL).Msg("Exchanging authorization code")

	ctx = context.WithValue(ctx, goauth2.HTTPClient, e.httpClient)
	token, err := e.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrAuthExchange, err)
	}

	return e.tokenResponse(token), nil
}

func (e *Exchanger) tokenResponse(token *goauth2.Token) *oauth2.TokenResponse {
	resp := &oauth2.TokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		Expiry:      token.Expiry,
	}
	if patient, ok := token.Extra(oauth2.ExtraPatient).(string); ok {
		resp.Patient = patient
	}
	if scope, ok := token.Extra(oauth2.ExtraScope).(string); ok {
		resp.Scope = scope
	}
	if expiresIn, ok := token.Extra(oauth2.ExtraExpiresIn).(float64); ok {
		resp.ExpiresIn = int(expiresIn)
	}
	if resp.Expiry.IsZero() {
		resp.Expiry = accessTokenExpiry(token.AccessToken)
	}
	return resp
}

// accessTokenExpiry reads the exp claim of a JWT access token without verifying it.
// Opaque tokens yield the zero time.
func accessTokenExpiry(accessToken string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// ForgetConsumedBefore drops the record of codes consumed before cutoff.
// Authorization codes are short lived, so a forgotten code can no longer be redeemed.
func (e *Exchanger) ForgetConsumedBefore(cutoff time.Time) error {
	return e.codes.DeleteOlderThan(cutoff)
}

// Consumed reports whether the code has already been sent to the token endpoint
func (e *Exchanger) Consumed(code string) bool {
	_, err := e.codes.Get(strings.TrimSpace(code))
	return err == nil
}
