package apiclient

import (
	"context"
	"net/http"
)

// Login exchanges credentials for a token pair. It does not touch the
// session; storing the tokens is the caller's decision.
// Rejected credentials surface as a *RemoteError with status 401.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthTokens, error) {
	var tokens AuthTokens
	if err := c.call(ctx, http.MethodPost, "/auth/login", nil, creds, &tokens, false); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// RefreshToken exchanges a refresh token for a new token pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	body := struct {
		RefreshToken string `json:"refreshToken"`
	}{RefreshToken: refreshToken}

	var tokens AuthTokens
	if err := c.call(ctx, http.MethodPost, "/auth/refresh-token", nil, body, &tokens, false); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Profile returns the user the session belongs to.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var user User
	if err := c.call(ctx, http.MethodGet, "/auth/profile", nil, nil, &user, true); err != nil {
		return nil, err
	}
	return &user, nil
}
