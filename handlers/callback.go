package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-orbit-auth/httpclient"
	"github.com/jrsteele09/go-orbit-auth/metrics"
	"github.com/jrsteele09/go-orbit-auth/oauth2"
	"github.com/jrsteele09/go-orbit-auth/pkce"
	"github.com/jrsteele09/go-orbit-auth/session"
	xoauth2 "golang.org/x/oauth2"
)

// Redirect targets used by Callback when the caller supplied no error_callback_url.
const (
	errorTargetProvider      = "/?error=true"
	errorTargetMissingParams = "/?error=missing_params"
	errorTargetCSRF          = "/?error=csrf"
	errorTargetExchange      = "/?error=token_exchange_failed"
	errorTargetUserInfo      = "/?error=user_info_failed"
	errorTargetInternal      = "/?error=internal_error"
)

func (h *Handlers) redirectURI(r *http.Request) string {
	return requestOrigin(r) + h.callbackPath
}

// SignIn starts an authorization. The state, code verifier and callback_url are kept in
// short-lived cookies and the browser is sent to the provider.
//
// Query parameters: callback_url, error_callback_url, new_user_callback_url and scope
// (space separated).
func (h *Handlers) SignIn() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		state, err := pkce.GenerateRandomStringFrom(h.random, pkce.DefaultLength)
		if err != nil {
			h.logger.Err(err).Msg("failed to generate state")
			h.metrics.ObserveOutcome(metrics.OpHandlerLogin, "internal_error")
			h.redirect(w, r, resolve(r, errorTargetInternal).String())
			return
		}
		verifier, err := pkce.GenerateRandomStringFrom(h.random, pkce.DefaultLength)
		if err != nil {
			h.logger.Err(err).Msg("failed to generate code verifier")
			h.metrics.ObserveOutcome(metrics.OpHandlerLogin, "internal_error")
			h.redirect(w, r, resolve(r, errorTargetInternal).String())
			return
		}

		scopes := strings.Fields(q.Get(oauth2.ParamScope))
		if len(scopes) == 0 {
			scopes = h.config.Scopes
		}
		if len(scopes) == 0 {
			scopes = oauth2.DefaultScopes
		}

		params := []xoauth2.AuthCodeOption{
			xoauth2.SetAuthURLParam(oauth2.ParamCodeChallenge, pkce.Challenge(verifier)),
			xoauth2.SetAuthURLParam(oauth2.ParamCodeChallengeMethod, string(oauth2.CodeMethodTypeS256)),
		}
		for _, name := range []string{oauth2.ParamErrorCallbackURL, oauth2.ParamNewUserCallbackURL} {
			if v := q.Get(name); v != "" {
				params = append(params, xoauth2.SetAuthURLParam(name, v))
			}
		}
		cfg := &xoauth2.Config{
			ClientID:    h.config.ClientID,
			RedirectURL: h.redirectURI(r),
			Scopes:      scopes,
			Endpoint:    xoauth2.Endpoint{AuthURL: h.config.Endpoint(oauth2.AuthorizePath)},
		}

		h.setCookie(w, r, oauth2.CookieAuthState, state, maxAgeOf(oauth2.PendingCookieMaxAge))
		h.setCookie(w, r, oauth2.CookieCodeVerifier, verifier, maxAgeOf(oauth2.PendingCookieMaxAge))
		if callbackURL := q.Get(oauth2.ParamCallbackURL); callbackURL != "" {
			h.setCookie(w, r, oauth2.CookieCallbackURL, url.QueryEscape(callbackURL), maxAgeOf(oauth2.PendingCookieMaxAge))
		}
		h.metrics.ObserveOutcome(metrics.OpHandlerLogin, metrics.OutcomeSuccess)
		h.redirect(w, r, cfg.AuthCodeURL(state, params...))
	}
}

// Callback completes an authorization and sets the token cookies. Every failure is a
// redirect: to the request's error_callback_url when given, otherwise to a
// "/?error=<reason>" target on the same site.
func (h *Handlers) Callback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		fail := func(outcome, fallback string) {
			h.metrics.ObserveOutcome(metrics.OpHandlerCB, outcome)
			target := fallback
			if errorCallbackURL := q.Get(oauth2.ParamErrorCallbackURL); errorCallbackURL != "" {
				target = errorCallbackURL
			}
			h.redirect(w, r, resolve(r, target).String())
		}
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error().Interface("panic", rec).Msg("OAuth callback error")
				fail("internal_error", errorTargetInternal)
			}
		}()

		if q.Get(oauth2.ParamError) != "" {
			fail("provider_error", errorTargetProvider)
			return
		}
		code := q.Get(oauth2.ParamCode)
		state := q.Get(oauth2.ParamState)
		if code == "" || state == "" {
			fail("missing_params", errorTargetMissingParams)
			return
		}

		stateCookie := h.readCookie(r, oauth2.CookieAuthState)
		if (stateCookie != "" || h.strictState) && state != stateCookie {
			fail("csrf", errorTargetCSRF)
			return
		}

		form := url.Values{
			oauth2.ParamGrantType:   {string(oauth2.AuthorizationCodeGrant)},
			oauth2.ParamCode:        {code},
			oauth2.ParamRedirectURI: {h.redirectURI(r)},
			oauth2.ParamClientID:    {h.config.ClientID},
		}
		if h.config.Confidential() {
			form.Set(oauth2.ParamClientSecret, h.config.ClientSecret)
		}
		if verifier := h.readCookie(r, oauth2.CookieCodeVerifier); verifier != "" {
			form.Set(oauth2.ParamCodeVerifier, verifier)
		}

		resp, err := httpclient.PostForm(r.Context(), h.http, h.config.Endpoint(oauth2.TokenPath), form)
		if err != nil {
			h.logger.Err(err).Msg("OAuth callback error")
			fail("internal_error", errorTargetInternal)
			return
		}
		if !resp.OK() {
			h.logger.Debug().Int("status", resp.StatusCode).Msg("token exchange rejected")
			fail("token_exchange_failed", errorTargetExchange)
			return
		}
		tokens, err := session.ParseTokenPayload(resp.Body)
		if err != nil {
			h.logger.Err(err).Msg("OAuth callback error")
			fail("internal_error", errorTargetInternal)
			return
		}

		info, err := httpclient.GetBearer(r.Context(), h.http, h.config.Endpoint(oauth2.UserInfoPath), tokens.AccessToken)
		if err != nil {
			h.logger.Err(err).Msg("OAuth callback error")
			fail("internal_error", errorTargetInternal)
			return
		}
		if !info.OK() {
			fail("user_info_failed", errorTargetUserInfo)
			return
		}

		target := resolve(r, h.callbackTarget(r))
		params := target.Query()
		params.Set("authenticated", "true")
		target.RawQuery = params.Encode()

		h.setTokenCookies(w, r, tokens)
		clearCookie(w, oauth2.CookieAuthState)
		clearCookie(w, oauth2.CookieCodeVerifier)
		clearCookie(w, oauth2.CookieCallbackURL)

		h.metrics.ObserveOutcome(metrics.OpHandlerCB, metrics.OutcomeSuccess)
		h.redirect(w, r, target.String())
	}
}

// callbackTarget picks callback_url, then redirect_uri from the query, then the
// callback_url saved at sign-in, then the site root.
func (h *Handlers) callbackTarget(r *http.Request) string {
	q := r.URL.Query()
	if v := q.Get(oauth2.ParamCallbackURL); v != "" {
		return v
	}
	if v := q.Get(oauth2.ParamRedirectURI); v != "" {
		return v
	}
	if v := h.readCookie(r, oauth2.CookieCallbackURL); v != "" {
		if unescaped, err := url.QueryUnescape(v); err == nil {
			return unescaped
		}
	}
	return "/"
}

// setTokenCookies sets the access token cookie and, when present, the refresh token
// cookie after it.
func (h *Handlers) setTokenCookies(w http.ResponseWriter, r *http.Request, tokens session.TokenPayload) {
	h.setCookie(w, r, oauth2.CookieAccessToken, tokens.AccessToken, tokens.ExpiresIn)
	if tokens.RefreshToken != "" {
		h.setCookie(w, r, oauth2.CookieRefreshToken, tokens.RefreshToken, maxAgeOf(oauth2.RefreshCookieMaxAge))
	}
}
