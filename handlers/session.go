package handlers

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-orbit-auth/httpclient"
	"github.com/jrsteele09/go-orbit-auth/metrics"
	"github.com/jrsteele09/go-orbit-auth/oauth2"
	"github.com/jrsteele09/go-orbit-auth/session"
)

// SessionResponse is the body of the Session handler. Both fields are null when there is
// no valid session.
type SessionResponse struct {
	User    *session.User `json:"user"`
	Session *TokenView    `json:"session"`
}

type TokenView struct {
	AccessToken string `json:"accessToken"`
}

type errorBody struct {
	Error string `json:"error"`
}

type successBody struct {
	Success bool `json:"success"`
}

// User looks up the user behind the access token cookie. It returns nil without an
// error when there is no cookie or the provider does not accept the token; err is only
// set when the provider could not be reached.
func (h *Handlers) User(r *http.Request) (*session.User, string, error) {
	accessToken := h.readCookie(r, oauth2.CookieAccessToken)
	if accessToken == "" {
		return nil, "", nil
	}

	resp, err := httpclient.GetBearer(r.Context(), h.http, h.config.Endpoint(oauth2.UserInfoPath), accessToken)
	if err != nil {
		return nil, "", err
	}
	if !resp.OK() {
		return nil, "", nil
	}
	user, err := session.ParseUserClaims(resp.Body)
	if err != nil {
		h.logger.Debug().Err(err).Msg("discarding userinfo response")
		return nil, "", nil
	}
	return &user, accessToken, nil
}

// Session reports the user behind the access token cookie. It always answers 200.
func (h *Handlers) Session() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, accessToken, err := h.User(r)
		if err != nil {
			h.logger.Debug().Err(err).Msg("session lookup failed")
		}
		if user == nil {
			writeJSON(w, http.StatusOK, SessionResponse{})
			return
		}
		writeJSON(w, http.StatusOK, SessionResponse{User: user, Session: &TokenView{AccessToken: accessToken}})
	}
}

// Refresh redeems the refresh token cookie. The refreshed cookies are only written when
// the handlers were built WithRefreshCookies.
func (h *Handlers) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshToken := h.readCookie(r, oauth2.CookieRefreshToken)
		if refreshToken == "" {
			h.metrics.ObserveOutcome(metrics.OpHandlerRenew, "no_refresh_token")
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "No refresh token"})
			return
		}

		form := url.Values{
			oauth2.ParamGrantType:    {string(oauth2.RefreshTokenGrant)},
			oauth2.ParamRefreshToken: {refreshToken},
			oauth2.ParamClientID:     {h.config.ClientID},
		}
		if h.config.Confidential() {
			form.Set(oauth2.ParamClientSecret, h.config.ClientSecret)
		}

		resp, err := httpclient.PostForm(r.Context(), h.http, h.config.Endpoint(oauth2.TokenPath), form)
		if err != nil {
			h.logger.Err(err).Msg("refresh failed")
			h.metrics.ObserveOutcome(metrics.OpHandlerRenew, "internal_error")
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Refresh failed"})
			return
		}
		if !resp.OK() {
			h.metrics.ObserveOutcome(metrics.OpHandlerRenew, "rejected")
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Failed to refresh"})
			return
		}
		tokens, err := session.ParseTokenPayload(resp.Body)
		if err != nil {
			h.logger.Err(err).Msg("refresh failed")
			h.metrics.ObserveOutcome(metrics.OpHandlerRenew, "internal_error")
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Refresh failed"})
			return
		}

		if h.refreshCookies {
			h.setTokenCookies(w, r, tokens)
		}
		h.metrics.ObserveOutcome(metrics.OpHandlerRenew, metrics.OutcomeSuccess)
		writeJSON(w, http.StatusOK, successBody{Success: true})
	}
}

// SignOut revokes the access token cookie, ignoring any failure, clears the auth cookies
// and redirects to the site root.
func (h *Handlers) SignOut() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if accessToken := h.readCookie(r, oauth2.CookieAccessToken); accessToken != "" {
			form := url.Values{
				oauth2.ParamToken:    {accessToken},
				oauth2.ParamClientID: {h.config.ClientID},
			}
			if h.config.Confidential() {
				form.Set(oauth2.ParamClientSecret, h.config.ClientSecret)
			}
			if _, err := httpclient.PostForm(r.Context(), h.http, h.config.Endpoint(oauth2.RevokePath), form); err != nil {
				h.logger.Err(err).Msg("Sign out error")
			}
		}

		clearCookie(w, oauth2.CookieAccessToken)
		clearCookie(w, oauth2.CookieRefreshToken)
		clearCookie(w, oauth2.CookieAuthState)
		clearCookie(w, oauth2.CookieCodeVerifier)
		clearCookie(w, oauth2.CookieCallbackURL)
		h.metrics.ObserveOutcome(metrics.OpHandlerLogout, metrics.OutcomeSuccess)
		h.redirect(w, r, resolve(r, "/").String())
	}
}
