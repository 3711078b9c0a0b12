package client

import (
	"context"

	"github.com/jrsteele09/go-orbit-auth/autherrors"
	"github.com/jrsteele09/go-orbit-auth/session"
	xoauth2 "golang.org/x/oauth2"
)

// TokenSource serves the stored access token, refreshing and persisting it once it has
// expired. The result can back an oauth2.Transport.
func (c *Client) TokenSource(ctx context.Context) xoauth2.TokenSource {
	return xoauth2.ReuseTokenSource(nil, &storedTokenSource{ctx: ctx, c: c})
}

type storedTokenSource struct {
	ctx context.Context
	c   *Client
}

func (ts *storedTokenSource) Token() (*xoauth2.Token, error) {
	c := ts.c
	s := c.store()
	if s == nil {
		return nil, autherrors.New(autherrors.SessionNotFound, "No stored session")
	}
	stored, err := c.loadTokens(ts.ctx, s)
	if err != nil {
		return nil, err
	}
	if stored.AccessToken == "" {
		return nil, autherrors.New(autherrors.SessionNotFound, "No stored session")
	}

	expiresAt := stored.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = c.now().Add(session.DefaultLifetime)
	}
	if !c.now().After(expiresAt) {
		return session.Tokens{
			AccessToken:          stored.AccessToken,
			RefreshToken:         stored.RefreshToken,
			AccessTokenExpiresAt: expiresAt,
			TokenType:            "Bearer",
		}.OAuth2Token(), nil
	}

	if stored.RefreshToken == "" {
		c.clearQuietly(ts.ctx, "access token expired without a refresh token")
		return nil, autherrors.New(autherrors.SessionNotFound, "Session expired")
	}
	tokens, err := c.RefreshAccessToken(ts.ctx, stored.RefreshToken)
	if err != nil {
		c.clearQuietly(ts.ctx, "refresh failed")
		return nil, err
	}
	if err := c.storeSession(ts.ctx, tokens.AccessToken, tokens.RefreshToken, tokens.AccessTokenExpiresAt); err != nil {
		return nil, err
	}
	if tokens.TokenType == "" {
		tokens.TokenType = "Bearer"
	}
	return tokens.OAuth2Token(), nil
}
