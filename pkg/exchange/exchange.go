// Package exchange trades an authorization code for tokens at the provider's token endpoint.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"

	"github.com/go-training/oauth-loopback/pkg/core"
	"github.com/go-training/oauth-loopback/pkg/observability"
	"github.com/go-training/oauth-loopback/pkg/provider"
	"github.com/go-training/oauth-loopback/pkg/transport"
)

// maxResponseBody matches the limit oauth2 applies to token responses.
const maxResponseBody = 1 << 20

// Exchanger performs the authorization_code grant.
type Exchanger struct {
	endpoint oauth2.Endpoint
	client   *http.Client
	timeout  time.Duration
}

// Option configures an Exchanger.
type Option func(*Exchanger)

// WithTimeout overrides the per-exchange timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Exchanger) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// New creates an Exchanger that posts to endpoint.TokenURL through client.
// A nil client means a direct client with the default timeout.
func New(endpoint oauth2.Endpoint, client *http.Client, opts ...Option) *Exchanger {
	if client == nil {
		client, _ = transport.NewHTTPClient("", transport.DefaultTimeout)
	}
	// client_id and client_secret travel in the form body; the secret only when set.
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	e := &Exchanger{
		endpoint: endpoint,
		client:   client,
		timeout:  transport.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Exchange trades code for tokens. redirect_uri is rebuilt from port so it matches
// the value sent in the authorization request.
//
// Errors are *core.HTTPStatusError for a token endpoint rejection and
// *core.NetworkError when no response arrived in time; anything else is returned unchanged.
func (e *Exchanger) Exchange(ctx context.Context, session *core.AuthSession, code string, port int) (*core.TokenResponse, error) {
	logger := core.LoggerFromCtx(ctx)
	start := time.Now()

	ctx, span := observability.StartSpan(ctx, "oauth.token_exchange",
		attribute.String("oauth.token_url", e.endpoint.TokenURL),
		attribute.Bool("oauth.proxy", transport.UsesProxy(e.client)),
	)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	capture := &captureTransport{base: e.client.Transport}
	client := *e.client
	client.Transport = capture
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &client)

	logger.Info("Requesting token",
		"token_url", e.endpoint.TokenURL,
		"proxy", transport.UsesProxy(e.client),
	)

	cfg := provider.OAuth2Config(session, e.endpoint, port)
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		err = classify(err)
		logFailure(logger, err)
		observability.AddAttributes(ctx, "Token exchange failed",
			attribute.String("oauth.status", "error"),
			attribute.Int("http.status_code", capture.status),
			attribute.Float64("oauth.duration_ms", durationMs(start)),
		)
		observability.EndSpan(span, err)
		return nil, err
	}

	resp := tokenResponse(tok, capture.body)
	logger.Info("Token exchange succeeded",
		"status", capture.status,
		"has_refresh_token", resp.RefreshToken != "",
		"expires_in", resp.ExpiresIn,
	)
	observability.AddAttributes(ctx, "Token exchange succeeded",
		attribute.String("oauth.status", "ok"),
		attribute.Int("http.status_code", capture.status),
		attribute.Float64("oauth.duration_ms", durationMs(start)),
	)
	observability.EndSpan(span, nil)
	return resp, nil
}

// classify maps oauth2 and transport failures onto the exchange error classes.
func classify(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &core.HTTPStatusError{Status: status, Body: string(retrieveErr.Body)}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return &core.NetworkError{Message: err.Error(), Err: err}
	}
	return err
}

func logFailure(logger *slog.Logger, err error) {
	var (
		statusErr  *core.HTTPStatusError
		networkErr *core.NetworkError
	)
	switch {
	case errors.As(err, &statusErr):
		logger.Error("Token endpoint rejected the request",
			"status", statusErr.Status,
			"body", statusErr.Body,
		)
	case errors.As(err, &networkErr):
		logger.Error("No response from token endpoint", "error", networkErr.Err)
	default:
		logger.Error("Token request could not be built", "error", err)
	}
}

// tokenResponse copies the parsed token and keeps every raw field in Extra.
func tokenResponse(tok *oauth2.Token, body []byte) *core.TokenResponse {
	extra := decodeRaw(body)
	resp := &core.TokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    tok.ExpiresIn,
		Extra:        extra,
	}
	if scope, ok := extra["scope"].(string); ok {
		resp.Scope = scope
	}
	if resp.ExpiresIn == 0 {
		resp.ExpiresIn = asInt64(extra["expires_in"])
	}
	return resp
}

func decodeRaw(body []byte) map[string]any {
	raw := make(map[string]any)
	if len(body) == 0 {
		return raw
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err == nil {
		return raw
	}
	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return raw
	}
	for k := range vals {
		raw[k] = vals.Get(k)
	}
	return raw
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, _ := n.Float64()
			return int64(f)
		}
		return i
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}

func durationMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// captureTransport keeps a copy of the token response so provider-specific
// fields can be passed through untouched.
type captureTransport struct {
	base   http.RoundTripper
	status int
	body   []byte
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	t.status = resp.StatusCode
	t.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
