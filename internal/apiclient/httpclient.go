package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/erauner12/catalog-admin/internal/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds every outbound request. A timed-out request is a
// NetworkError and never triggers a token refresh.
const DefaultTimeout = 10 * time.Second

// Client is the gateway to the catalog REST API.
//
// Every request gets:
// - Authorization: Bearer <access token> (only when the session holds one)
// - X-Correlation-ID: <uuid>
//
// A 401 on an authorized call triggers at most one refresh-and-retry per
// request. Concurrent 401s share a single refresh through the session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Session
}

// NewClient creates a gateway for baseURL. A zero timeout selects DefaultTimeout.
func NewClient(baseURL string, sess *session.Session, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		session:    sess,
	}
}

// Session returns the session the client authorizes requests with.
func (c *Client) Session() *session.Session {
	return c.session
}

// attempt travels in the request context: how many times this logical
// request has been retried and which token the retry must use.
type attempt struct {
	retries int
	token   string
}

type attemptKey struct{}

func withAttempt(ctx context.Context, a attempt) context.Context {
	return context.WithValue(ctx, attemptKey{}, a)
}

func attemptFrom(ctx context.Context) attempt {
	a, _ := ctx.Value(attemptKey{}).(attempt)
	return a
}

// Do executes an HTTP request with auth header injection and 401 recovery.
// Responses other than 401 are returned as-is, whatever their status.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	correlationID := uuid.New().String()

	logger := log.With().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("correlationId", correlationID).
		Logger()

	return c.doWithRetry(ctx, req, &logger, correlationID)
}

// doWithRetry sends one attempt and hands 401s to handleUnauthorized
func (c *Client) doWithRetry(ctx context.Context, req *http.Request, logger *zerolog.Logger, correlationID string) (*http.Response, error) {
	a := attemptFrom(ctx)

	reqClone, err := cloneRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to clone request: %w", err)
	}
	reqClone.Header.Set("X-Correlation-ID", correlationID)

	// Retries carry the token the refresh resolved to; first attempts read the session
	token := a.token
	if a.retries == 0 {
		token = c.session.AccessToken()
	}
	if token != "" {
		reqClone.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(reqClone)
	duration := time.Since(start)

	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("HTTP request failed")
		return nil, &NetworkError{Method: req.Method, URL: req.URL.String(), Err: err}
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Int("retryCount", a.retries).
		Bool("authorized", token != "").
		Msg("HTTP request completed")

	if resp.StatusCode == http.StatusUnauthorized {
		return c.handleUnauthorized(ctx, req, resp, logger, correlationID, token)
	}
	return resp, nil
}

// handleUnauthorized waits for (or performs) a token refresh and retries once
func (c *Client) handleUnauthorized(ctx context.Context, req *http.Request, resp *http.Response, logger *zerolog.Logger, correlationID, rejected string) (*http.Response, error) {
	resp.Body.Close()

	a := attemptFrom(ctx)
	if a.retries >= 1 {
		logger.Warn().Msg("401 Unauthorized after token refresh - giving up")
		return nil, fmt.Errorf("%w: refreshed token was rejected", ErrUnauthorized)
	}

	logger.Warn().Msg("401 Unauthorized - refreshing token and retrying")

	ref, owner := c.session.AcquireRefresh(rejected)
	if owner {
		c.refreshSession(ctx, ref, logger)
	}

	token, err := ref.Wait(ctx)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, err
		}
		return nil, &NetworkError{Method: req.Method, URL: req.URL.String(), Err: err}
	}

	return c.doWithRetry(withAttempt(ctx, attempt{retries: a.retries + 1, token: token}), req, logger, correlationID)
}

// refreshSession runs the refresh this caller owns, resolves it for every
// waiter and frees the pending slot
func (c *Client) refreshSession(ctx context.Context, ref *session.Refresh, logger *zerolog.Logger) {
	defer c.session.ReleaseRefresh(ref)

	refreshToken := c.session.RefreshToken()
	if refreshToken == "" {
		logger.Warn().Msg("no refresh token - clearing session")
		c.session.ClearTokens()
		ref.Resolve("", fmt.Errorf("%w: no refresh token", ErrUnauthorized))
		return
	}

	// The refresh serves every waiter, so one caller giving up must not abort it
	tokens, err := c.RefreshToken(context.WithoutCancel(ctx), refreshToken)
	if err != nil {
		logger.Warn().Err(err).Msg("token refresh failed - clearing session")
		c.session.ClearTokens()
		ref.Resolve("", fmt.Errorf("%w: token refresh failed: %w", ErrUnauthorized, err))
		return
	}

	c.session.SetTokens(tokens.AccessToken, tokens.RefreshToken)
	ref.Resolve(tokens.AccessToken, nil)

	logger.Info().Msg("access token refreshed")
}

// sendOnce executes a request without auth injection or 401 recovery.
// Used by login and refresh, whose 401s mean bad credentials.
func (c *Client) sendOnce(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	req.Header.Set("X-Correlation-ID", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", req.URL.String()).Msg("HTTP request failed")
		return nil, &NetworkError{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	return resp, nil
}

// call builds a JSON request, sends it and decodes a 2xx body into out
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any, authorized bool) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var resp *http.Response
	if authorized {
		resp, err = c.Do(ctx, req)
	} else {
		resp, err = c.sendOnce(ctx, req)
	}
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeRemoteError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response from %s %s: %w", method, path, err)
	}
	return nil
}

// decodeRemoteError turns an error response into a RemoteError.
// The API sends {"message": "..."} or {"message": ["...", "..."]}.
func decodeRemoteError(resp *http.Response) error {
	remote := &RemoteError{Status: resp.StatusCode}

	var errResp struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || json.Unmarshal(data, &errResp) != nil {
		remote.Message = http.StatusText(resp.StatusCode)
		return remote
	}

	var single string
	var many []string
	switch {
	case json.Unmarshal(errResp.Message, &single) == nil && single != "":
		remote.Message = single
	case json.Unmarshal(errResp.Message, &many) == nil && len(many) > 0:
		remote.Message = strings.Join(many, "; ")
	case errResp.Error != "":
		remote.Message = errResp.Error
	default:
		remote.Message = http.StatusText(resp.StatusCode)
	}
	return remote
}

// cloneRequest creates a copy of an HTTP request for retry
// Preserves the request body by reading and restoring it
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	var body io.Reader
	if bodyBytes != nil {
		body = bytes.NewReader(bodyBytes)
	}
	reqClone, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, err
	}

	for k, v := range req.Header {
		if k == "Authorization" {
			continue // Will be re-injected
		}
		reqClone.Header[k] = v
	}

	return reqClone, nil
}
