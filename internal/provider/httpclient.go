// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vitalsync/internal/logging"
	"github.com/tomtom215/vitalsync/internal/metrics"
	"github.com/tomtom215/vitalsync/internal/models"
)

const (
	// maxErrorBodySize caps how much of an error response is kept for diagnostics.
	maxErrorBodySize = 64 * 1024

	// maxResponseBodySize caps successful payloads.
	maxResponseBodySize = 16 * 1024 * 1024

	// maxRetryAfter caps a provider-supplied Retry-After.
	maxRetryAfter = time.Minute
)

var errMalformedResponse = errors.New("malformed response")

// readBodyForError reads at most maxErrorBodySize bytes for error reporting.
func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	if len(body) == maxErrorBodySize {
		return string(body) + "\n... (truncated)"
	}
	return strings.TrimSpace(string(body))
}

// requestFunc builds a fresh request per attempt so bodies can be replayed.
type requestFunc func(ctx context.Context) (*http.Request, error)

// httpClient is the transport shared by all adapters of one provider.
type httpClient struct {
	provider       models.Provider
	client         *http.Client
	maxRetries     int
	retryBaseDelay time.Duration
}

func newHTTPClient(p models.Provider, opts Options) *httpClient {
	return &httpClient{
		provider:       p,
		client:         opts.HTTPClient,
		maxRetries:     opts.MaxRateLimitRetries,
		retryBaseDelay: opts.RetryBaseDelay,
	}
}

// do executes the request, retrying HTTP 429 with exponential backoff and
// honouring Retry-After. When retries run out the final 429 response is
// returned to the caller unread.
func (c *httpClient) do(ctx context.Context, endpoint string, newReq requestFunc) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := newReq(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			metrics.RecordProviderRequest(string(c.provider), endpoint, 0, time.Since(start))
			return nil, err
		}
		metrics.RecordProviderRequest(string(c.provider), endpoint, resp.StatusCode, time.Since(start))

		if resp.StatusCode != http.StatusTooManyRequests || attempt >= c.maxRetries {
			return resp, nil
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, convErr := strconv.Atoi(strings.TrimSpace(retryAfter)); convErr == nil && seconds >= 0 {
				delay = time.Duration(seconds) * time.Second
			}
		}
		if delay > maxRetryAfter {
			delay = maxRetryAfter
		}
		_ = resp.Body.Close()

		logging.Ctx(ctx).Warn().
			Str("provider", string(c.provider)).
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Provider rate limited request, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// getJSON performs an authenticated GET and decodes the body into out.
// The raw body is returned for RawPayload.
func (c *httpClient) getJSON(ctx context.Context, endpoint, rawURL, accessToken string, out interface{}) ([]byte, error) {
	resp, err := c.do(ctx, endpoint, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, &ProviderFetchError{Provider: c.provider, Endpoint: endpoint, Err: err}
	}
	defer closeQuietly(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderFetchError{
			Provider:   c.provider,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       readBodyForError(resp.Body),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, &ProviderFetchError{Provider: c.provider, Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, &ProviderFetchError{
			Provider:   c.provider,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", errMalformedResponse, err.Error()),
		}
	}
	return body, nil
}

// tokenFailure carries the upstream details of a failed token call so the
// adapter can wrap it in the right typed error.
type tokenFailure struct {
	status int
	body   string
	err    error
}

func (f *tokenFailure) Error() string {
	if f.err != nil {
		return f.err.Error()
	}
	return fmt.Sprintf("unexpected status %d", f.status)
}

func (f *tokenFailure) Unwrap() error { return f.err }

// tokenResponse covers the token payloads of all three providers.
// Strava reports an absolute expires_at; Fitbit and Lose It! a relative expires_in.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// postToken performs a token endpoint call and decodes the response.
func (c *httpClient) postToken(ctx context.Context, endpoint string, newReq requestFunc) (*tokenResponse, error) {
	resp, err := c.do(ctx, endpoint, newReq)
	if err != nil {
		return nil, &tokenFailure{err: err}
	}
	defer closeQuietly(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &tokenFailure{status: resp.StatusCode, body: readBodyForError(resp.Body)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return nil, &tokenFailure{status: resp.StatusCode, err: fmt.Errorf("read token response: %w", err)}
	}
	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, &tokenFailure{status: resp.StatusCode, err: fmt.Errorf("%w: %s", errMalformedResponse, err.Error())}
	}
	if token.AccessToken == "" {
		return nil, &tokenFailure{status: resp.StatusCode, err: fmt.Errorf("%w: missing access_token", errMalformedResponse)}
	}
	if token.ExpiresAt <= 0 && token.ExpiresIn <= 0 {
		return nil, &tokenFailure{status: resp.StatusCode, err: fmt.Errorf("%w: missing token expiry", errMalformedResponse)}
	}
	return &token, nil
}

// credentials converts a token response. absolute selects expires_at over
// expires_in when both are present. previousRefresh is kept when the
// provider does not rotate the refresh token.
func (t *tokenResponse) credentials(now time.Time, absolute bool, previousRefresh string) *models.OAuthCredentials {
	var expiresAt time.Time
	switch {
	case absolute && t.ExpiresAt > 0:
		expiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		expiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	default:
		expiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	}

	refresh := t.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}
	return &models.OAuthCredentials{
		AccessToken:  t.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		Scope:        t.Scope,
		TokenType:    t.TokenType,
	}
}

func exchangeError(p models.Provider, err error) *AuthExchangeError {
	out := &AuthExchangeError{Provider: p, Err: err}
	var tf *tokenFailure
	if errors.As(err, &tf) {
		out.StatusCode, out.Body, out.Err = tf.status, tf.body, tf.err
	}
	return out
}

func refreshError(p models.Provider, err error) *TokenRefreshError {
	out := &TokenRefreshError{Provider: p, Err: err}
	var tf *tokenFailure
	if errors.As(err, &tf) {
		out.StatusCode, out.Body, out.Err = tf.status, tf.body, tf.err
	}
	return out
}

// postForm sends a form-encoded POST and discards the body, returning an
// error for non-2xx. Used for revocation.
func (c *httpClient) postForm(ctx context.Context, endpoint, rawURL string, form url.Values, decorate func(*http.Request)) error {
	resp, err := c.do(ctx, endpoint, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if decorate != nil {
			decorate(req)
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	defer closeQuietly(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, readBodyForError(resp.Body))
	}
	return nil
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
