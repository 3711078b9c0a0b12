package client

import (
	"context"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-orbit-auth/autherrors"
	"github.com/jrsteele09/go-orbit-auth/httpclient"
	"github.com/jrsteele09/go-orbit-auth/metrics"
	"github.com/jrsteele09/go-orbit-auth/oauth2"
	"github.com/jrsteele09/go-orbit-auth/session"
)

// ExchangeCodeForTokens redeems an authorization code at the token endpoint.
func (c *Client) ExchangeCodeForTokens(ctx context.Context, code, codeVerifier, redirectURI string) (tokens session.Tokens, err error) {
	defer func() { c.metrics.Observe(metrics.OpExchange, err) }()

	form := url.Values{
		oauth2.ParamGrantType:    {string(oauth2.AuthorizationCodeGrant)},
		oauth2.ParamCode:         {code},
		oauth2.ParamRedirectURI:  {redirectURI},
		oauth2.ParamClientID:     {c.config.ClientID},
		oauth2.ParamCodeVerifier: {codeVerifier},
	}
	c.addSecret(form)

	resp, err := c.postForm(ctx, "token", oauth2.TokenPath, form)
	if err != nil {
		return session.Tokens{}, autherrors.Wrap(autherrors.TokenExchangeFailed, err, "Failed to exchange authorization code")
	}
	if !resp.OK() {
		return session.Tokens{}, autherrors.New(autherrors.TokenExchangeFailed,
			httpclient.ErrorMessageOr(resp.Body, "Failed to exchange authorization code"))
	}

	tokens, err = session.ParseTokenResponse(resp.Body, c.now())
	if err != nil {
		return session.Tokens{}, err
	}
	if err := c.verifyIDToken(ctx, tokens.IDToken); err != nil {
		return session.Tokens{}, err
	}
	return tokens, nil
}

// RefreshAccessToken obtains new tokens with a refresh token. When the provider does not
// rotate the refresh token, the returned tokens keep refreshToken.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (tokens session.Tokens, err error) {
	defer func() { c.metrics.Observe(metrics.OpRefresh, err) }()

	form := url.Values{
		oauth2.ParamGrantType:    {string(oauth2.RefreshTokenGrant)},
		oauth2.ParamRefreshToken: {refreshToken},
		oauth2.ParamClientID:     {c.config.ClientID},
	}
	c.addSecret(form)

	resp, err := c.postForm(ctx, "token", oauth2.TokenPath, form)
	if err != nil {
		return session.Tokens{}, autherrors.Wrap(autherrors.TokenRefreshFailed, err, "Failed to refresh access token")
	}
	if !resp.OK() {
		return session.Tokens{}, autherrors.New(autherrors.TokenRefreshFailed,
			httpclient.ErrorMessageOr(resp.Body, "Failed to refresh access token"))
	}

	tokens, err = session.ParseTokenResponse(resp.Body, c.now())
	if err != nil {
		return session.Tokens{}, autherrors.Wrap(autherrors.TokenRefreshFailed, err, "")
	}
	if err := c.verifyIDToken(ctx, tokens.IDToken); err != nil {
		return session.Tokens{}, err
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	return tokens, nil
}

// GetSession loads the user behind accessToken. A nil expiresAt means the expiry is
// unknown and defaults to one hour from now.
func (c *Client) GetSession(ctx context.Context, accessToken string, expiresAt *time.Time, refreshToken string) (sess *session.Session, err error) {
	defer func() { c.metrics.Observe(metrics.OpUserInfo, err) }()

	start := time.Now()
	resp, err := httpclient.GetBearer(ctx, c.http, c.config.Endpoint(oauth2.UserInfoPath), accessToken)
	c.metrics.ObserveProvider("userinfo", statusOf(resp), start)
	if err != nil {
		return nil, autherrors.Wrap(autherrors.SessionNotFound, err, "Failed to get session")
	}
	if !resp.OK() {
		return nil, autherrors.New(autherrors.SessionNotFound,
			httpclient.ErrorMessageOrText(resp.Body, "Failed to get session"))
	}

	user, err := session.ParseUserInfo(resp.Body)
	if err != nil {
		return nil, err
	}

	expiry := c.now().Add(session.DefaultLifetime)
	if expiresAt != nil {
		expiry = *expiresAt
	}
	return &session.Session{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiry,
	}, nil
}

// revoke asks the provider to revoke token. Callers ignore the error.
func (c *Client) revoke(ctx context.Context, token string) (err error) {
	defer func() { c.metrics.Observe(metrics.OpRevoke, err) }()

	form := url.Values{
		oauth2.ParamToken:    {token},
		oauth2.ParamClientID: {c.config.ClientID},
	}
	c.addSecret(form)
	_, err = c.postForm(ctx, "revoke", oauth2.RevokePath, form)
	return err
}

func (c *Client) postForm(ctx context.Context, endpoint, path string, form url.Values) (*httpclient.Response, error) {
	start := time.Now()
	resp, err := httpclient.PostForm(ctx, c.http, c.config.Endpoint(path), form)
	c.metrics.ObserveProvider(endpoint, statusOf(resp), start)
	return resp, err
}

func (c *Client) addSecret(form url.Values) {
	if c.config.Confidential() {
		form.Set(oauth2.ParamClientSecret, c.config.ClientSecret)
	}
}

func (c *Client) verifyIDToken(ctx context.Context, raw string) error {
	if c.idTokenVerifier == nil || raw == "" {
		return nil
	}
	if _, err := c.idTokenVerifier.Verify(ctx, raw); err != nil {
		return autherrors.Wrap(autherrors.InvalidToken, err, "Invalid id_token")
	}
	return nil
}

// NewRemoteIDTokenVerifier builds a verifier that checks id_tokens against the provider's
// JWKS document, expecting the provider origin as issuer and the client id as audience.
func NewRemoteIDTokenVerifier(ctx context.Context, config Config) (*oidc.IDTokenVerifier, error) {
	cfg, err := config.Normalize()
	if err != nil {
		return nil, err
	}
	keys := oidc.NewRemoteKeySet(ctx, cfg.BaseURL+oauth2.JWKSPath)
	return oidc.NewVerifier(cfg.BaseURL, keys, &oidc.Config{ClientID: cfg.ClientID}), nil
}

func statusOf(resp *httpclient.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
