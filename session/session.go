// Package session holds the token, user and session model of the client flow and the
// codec that turns provider responses into it.
package session

import (
	"time"

	"golang.org/x/oauth2"
)

// DefaultLifetime is assumed for restored sessions that carry no stored expiry.
const DefaultLifetime = time.Hour

// PendingAuthorization is written at sign-in and consumed once by the callback.
type PendingAuthorization struct {
	State        string
	CodeVerifier string
	CallbackURL  string
	RedirectURI  string
}

// Tokens is the result of a code exchange or refresh. It is replaced as a whole, never
// patched.
type Tokens struct {
	AccessToken          string
	RefreshToken         string
	AccessTokenExpiresAt time.Time
	Scope                string
	TokenType            string
	IDToken              string
}

// OAuth2Token converts t for use with golang.org/x/oauth2 transports.
func (t Tokens) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.AccessTokenExpiresAt,
	}
	if t.IDToken != "" {
		tok = tok.WithExtra(map[string]any{"id_token": t.IDToken})
	}
	return tok
}

// User is derived from the userinfo claims; it only lives inside a Session.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Image         string `json:"image,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
}

// Session is the signed-in view handed back to callers.
type Session struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the access token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
