package fhir

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/epic-fhir-client/internal/config"
	apperrors "github.com/jrsteele09/epic-fhir-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	goauth2 "golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Media types used against the FHIR server
const (
	MediaTypeJSON       = "application/json"
	MediaTypeFHIRJSON   = "application/fhir+json"
	MediaTypeFHIRNDJSON = "application/fhir+ndjson"
)

const (
	defaultUserAgent = "epic-fhir-client/1.0"
	defaultTimeout   = 30 * time.Second
	// cap on how much of an error body is read for diagnostics
	maxErrorBody = 64 << 10
)

// Client talks to a FHIR R4 server with a bearer access token
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per request timeout of the default HTTP client
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithRateLimit throttles outgoing requests to rps per second. Zero disables throttling.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// NewClient builds a Client for the FHIR base URL, e.g. https://host/api/FHIR/R4
func NewClient(baseURL string, options ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, errors.Wrap(err, "[NewClient] invalid FHIR base url")
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  defaultUserAgent,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the FHIR base URL without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Read fetches {base}/{resourceType}/{id}
func (c *Client) Read(ctx context.Context, token, resourceType, id string) (Resource, error) {
	if token == "" {
		return nil, apperrors.ErrNotAuthenticated
	}
	if resourceType == "" || id == "" {
		return nil, fmt.Errorf("%w: resource type and id are required", apperrors.ErrFetch)
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(resourceType), url.PathEscape(id))
	resp, err := c.do(ctx, token, http.MethodGet, endpoint, map[string]string{"Accept": MediaTypeJSON})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFetch, statusError(resp))
	}

	var resource Resource
	if err := json.NewDecoder(resp.Body).Decode(&resource); err != nil {
		return nil, fmt.Errorf("%w: decoding %s/%s: %w", apperrors.ErrFetch, resourceType, id, err)
	}
	return resource, nil
}

// Download streams an export output file into w and returns the bytes written
func (c *Client) Download(ctx context.Context, token, fileURL string, w io.Writer) (int64, error) {
	if token == "" {
		return 0, apperrors.ErrNotAuthenticated
	}

	resp, err := c.do(ctx, token, http.MethodGet, fileURL, map[string]string{"Accept": MediaTypeFHIRNDJSON})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", apperrors.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %w", apperrors.ErrFetch, statusError(resp))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: writing %s: %w", apperrors.ErrFetch, fileURL, err)
	}
	return n, nil
}

func (c *Client) do(ctx context.Context, token, method, endpoint string, headers map[string]string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	(&goauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	log.Debug().Str("method", method).Str("url", endpoint).Msg("FHIR request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// statusError describes an unexpected response. An OperationOutcome body is
// returned as *OperationOutcomeError.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var outcome OperationOutcome
	if err := json.Unmarshal(body, &outcome); err == nil && outcome.ResourceType == "OperationOutcome" {
		return &OperationOutcomeError{
			StatusCode: resp.StatusCode,
			Outcome:    outcome,
			RetryAfter: resp.Header.Get(HeaderRetryAfter),
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
}

// NewClientFromConfig builds a Client from the FHIR settings
func NewClientFromConfig(cfg config.FHIRConfig, options ...ClientOption) (*Client, error) {
	opts := append([]ClientOption{
		WithTimeout(cfg.GetHTTPTimeout()),
		WithRateLimit(cfg.GetRateLimit()),
	}, options...)
	return NewClient(cfg.GetFHIRBaseURL(), opts...)
}
