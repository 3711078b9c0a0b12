// Package client implements the Orbit OAuth 2.1 authorization code + PKCE flow for a
// single user agent: sign-in, callback validation, code exchange, refresh, and session
// restoration from a key/value store.
package client

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-orbit-auth/autherrors"
	"github.com/jrsteele09/go-orbit-auth/httpclient"
	"github.com/jrsteele09/go-orbit-auth/metrics"
	"github.com/jrsteele09/go-orbit-auth/oauth2"
	"github.com/jrsteele09/go-orbit-auth/pkce"
	"github.com/jrsteele09/go-orbit-auth/session"
	"github.com/jrsteele09/go-orbit-auth/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	xoauth2 "golang.org/x/oauth2"
)

const defaultRetries = 3

// Client drives the authorization flow for one OAuth client. It is safe for concurrent
// use, but concurrent refreshes of the same session are not coordinated.
type Client struct {
	config Config

	sessionStore    storage.Store
	localStore      storage.Store
	location        Location
	navigator       Navigator
	http            httpclient.Doer
	random          io.Reader
	now             func() time.Time
	logger          zerolog.Logger
	metrics         *metrics.Collector
	idTokenVerifier *oidc.IDTokenVerifier
}

// SignInOptions override the configured defaults for one sign-in.
type SignInOptions struct {
	CallbackURL        string
	ErrorCallbackURL   string
	NewUserCallbackURL string
	DisableRedirect    bool
	Scopes             []string
	RedirectURI        string
}

// SignInResult carries the authorization URL when the client did not navigate to it.
type SignInResult struct {
	RedirectURL string
	Success     bool
}

// New validates config and creates a client. Both storage policies default to
// independent in-memory stores.
func New(config Config, opts ...Option) (*Client, error) {
	cfg, err := config.Normalize()
	if err != nil {
		return nil, err
	}
	c := &Client{
		config:       cfg,
		sessionStore: storage.NewInMemoryStore(0),
		localStore:   storage.NewInMemoryStore(0),
		http:         httpclient.NewRetryDoer(httpclient.Default(), defaultRetries),
		random:       rand.Reader,
		now:          time.Now,
		logger:       log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the normalized configuration.
func (c *Client) Config() Config {
	return c.config
}

func (c *Client) store() storage.Store {
	if c.config.Storage == LocalStorage {
		return c.localStore
	}
	return c.sessionStore
}

func (c *Client) resolveRedirectURI(opts SignInOptions) (string, error) {
	if opts.RedirectURI != "" {
		return opts.RedirectURI, nil
	}
	if c.config.RedirectURI != "" {
		return c.config.RedirectURI, nil
	}
	if c.location == nil {
		return "", autherrors.New(autherrors.InvalidConfiguration, "redirectURI is required in non-browser environments")
	}
	return origin(c.location.URL()) + "/", nil
}

func (c *Client) oauth2Config(redirectURI string, scopes []string) *xoauth2.Config {
	return &xoauth2.Config{
		ClientID:     c.config.ClientID,
		ClientSecret: c.config.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint: xoauth2.Endpoint{
			AuthURL:  c.config.Endpoint(oauth2.AuthorizePath),
			TokenURL: c.config.Endpoint(oauth2.TokenPath),
		},
	}
}

// SignIn starts an authorization: it persists a fresh pending authorization, replacing
// any previous one, and navigates to the provider. The URL is returned instead when
// opts.DisableRedirect is set or the client has no Navigator.
func (c *Client) SignIn(ctx context.Context, opts SignInOptions) (result SignInResult, err error) {
	defer func() { c.metrics.Observe(metrics.OpSignIn, err) }()

	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = c.config.Scopes
	}
	if len(scopes) == 0 {
		scopes = oauth2.DefaultScopes
	}

	callbackURL := opts.CallbackURL
	if callbackURL == "" {
		callbackURL = "/"
		if c.location != nil {
			callbackURL = relativeURL(c.location.URL())
		}
	}

	state, err := pkce.GenerateRandomStringFrom(c.random, pkce.DefaultLength)
	if err != nil {
		return SignInResult{}, fmt.Errorf("failed to generate state: %w", err)
	}
	verifier, err := pkce.GenerateRandomStringFrom(c.random, pkce.DefaultLength)
	if err != nil {
		return SignInResult{}, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	redirectURI, err := c.resolveRedirectURI(opts)
	if err != nil {
		return SignInResult{}, err
	}

	params := []xoauth2.AuthCodeOption{
		xoauth2.SetAuthURLParam(oauth2.ParamCodeChallenge, pkce.Challenge(verifier)),
		xoauth2.SetAuthURLParam(oauth2.ParamCodeChallengeMethod, string(oauth2.CodeMethodTypeS256)),
	}
	if opts.ErrorCallbackURL != "" {
		params = append(params, xoauth2.SetAuthURLParam(oauth2.ParamErrorCallbackURL, opts.ErrorCallbackURL))
	}
	if opts.NewUserCallbackURL != "" {
		params = append(params, xoauth2.SetAuthURLParam(oauth2.ParamNewUserCallbackURL, opts.NewUserCallbackURL))
	}
	authURL := c.oauth2Config(redirectURI, scopes).AuthCodeURL(state, params...)

	if err := c.savePending(ctx, session.PendingAuthorization{
		State:        state,
		CodeVerifier: verifier,
		CallbackURL:  callbackURL,
		RedirectURI:  redirectURI,
	}); err != nil {
		return SignInResult{}, err
	}

	if opts.DisableRedirect || c.navigator == nil {
		return SignInResult{RedirectURL: authURL, Success: true}, nil
	}
	if err := c.navigator.Navigate(ctx, authURL); err != nil {
		return SignInResult{RedirectURL: authURL}, autherrors.Wrap(autherrors.AuthorizationFailed, err, "")
	}
	return SignInResult{Success: true}, nil
}

func (c *Client) savePending(ctx context.Context, p session.PendingAuthorization) error {
	s := c.store()
	if s == nil {
		return nil
	}
	for key, value := range map[string]string{
		oauth2.StorageKeyState:        p.State,
		oauth2.StorageKeyCodeVerifier: p.CodeVerifier,
		oauth2.StorageKeyCallbackURL:  p.CallbackURL,
		oauth2.StorageKeyRedirectURI:  p.RedirectURI,
	} {
		if err := s.Set(ctx, key, value); err != nil {
			return fmt.Errorf("failed to save pending authorization: %w", err)
		}
	}
	return nil
}

// HandleCallback completes an authorization using the client's current Location. It
// returns (nil, nil) when there is no Location or the URL carries no callback.
func (c *Client) HandleCallback(ctx context.Context) (*session.Session, error) {
	if c.location == nil {
		return nil, nil
	}
	return c.HandleCallbackURL(ctx, c.location.URL())
}

// HandleCallbackURL completes an authorization from the provider's redirect to u.
//
// The returned state is compared with the pending one before anything is sent to the
// provider. The pending authorization is consumed whether or not the exchange succeeds.
func (c *Client) HandleCallbackURL(ctx context.Context, u *url.URL) (sess *session.Session, err error) {
	if u == nil {
		return nil, nil
	}
	query := u.Query()
	code := query.Get(oauth2.ParamCode)
	state := query.Get(oauth2.ParamState)

	if providerErr := query.Get(oauth2.ParamError); providerErr != "" {
		msg := query.Get(oauth2.ParamErrorDescription)
		if msg == "" {
			msg = providerErr
		}
		err := autherrors.New(autherrors.AuthorizationFailed, msg)
		c.metrics.Observe(metrics.OpCallback, err)
		return nil, err
	}
	if code == "" || state == "" {
		return nil, nil
	}
	defer func() { c.metrics.Observe(metrics.OpCallback, err) }()

	pending, err := c.loadPending(ctx)
	if err != nil {
		return nil, err
	}
	if state != pending.State {
		return nil, autherrors.New(autherrors.AuthorizationFailed, "State mismatch - possible CSRF attack")
	}
	if s := c.store(); s != nil {
		if err := storage.RemoveAll(ctx, s, oauth2.PendingKeys...); err != nil {
			return nil, fmt.Errorf("failed to clear pending authorization: %w", err)
		}
	}
	if pending.CodeVerifier == "" {
		return nil, autherrors.New(autherrors.AuthorizationFailed, "Code verifier not found")
	}

	redirectURI := pending.RedirectURI
	if redirectURI == "" {
		if redirectURI, err = c.resolveRedirectURI(SignInOptions{}); err != nil {
			return nil, err
		}
	}
	callbackURL := pending.CallbackURL
	if callbackURL == "" {
		callbackURL = "/"
	}

	tokens, err := c.ExchangeCodeForTokens(ctx, code, pending.CodeVerifier, redirectURI)
	if err != nil {
		return nil, err
	}
	expiresAt := tokens.AccessTokenExpiresAt
	sess, err = c.GetSession(ctx, tokens.AccessToken, &expiresAt, tokens.RefreshToken)
	if err != nil {
		return nil, err
	}
	if err := c.storeSession(ctx, tokens.AccessToken, tokens.RefreshToken, tokens.AccessTokenExpiresAt); err != nil {
		return nil, err
	}

	if c.navigator != nil {
		if err := c.navigator.Replace(ctx, callbackURL); err != nil {
			c.logger.Warn().Err(err).Str("callback_url", callbackURL).Msg("failed to restore callback location")
		}
	}
	return sess, nil
}

func (c *Client) loadPending(ctx context.Context) (session.PendingAuthorization, error) {
	var p session.PendingAuthorization
	s := c.store()
	if s == nil {
		return p, nil
	}
	for key, dst := range map[string]*string{
		oauth2.StorageKeyState:        &p.State,
		oauth2.StorageKeyCodeVerifier: &p.CodeVerifier,
		oauth2.StorageKeyCallbackURL:  &p.CallbackURL,
		oauth2.StorageKeyRedirectURI:  &p.RedirectURI,
	} {
		v, _, err := s.Get(ctx, key)
		if err != nil {
			return p, fmt.Errorf("failed to read pending authorization: %w", err)
		}
		*dst = v
	}
	return p, nil
}
