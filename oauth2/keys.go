package oauth2

import "time"

// Keys written to client-side storage. The names are shared with the browser SDK so a
// store can be inspected or migrated across implementations.
const (
	StorageKeyState        = "orbit_auth_state"
	StorageKeyCodeVerifier = "orbit_auth_code_verifier"
	StorageKeyCallbackURL  = "orbit_auth_callback_url"
	StorageKeyRedirectURI  = "orbit_auth_redirect_uri"

	StorageKeyAccessToken        = "orbit_access_token"
	StorageKeyAccessTokenExpires = "orbit_access_token_expires"
	StorageKeyRefreshToken       = "orbit_refresh_token"
)

// PendingKeys are the transient sign-in keys, removed once a callback is consumed.
var PendingKeys = []string{
	StorageKeyState,
	StorageKeyCodeVerifier,
	StorageKeyCallbackURL,
	StorageKeyRedirectURI,
}

// SessionKeys are the keys removed when a session is cleared.
var SessionKeys = []string{
	StorageKeyAccessToken,
	StorageKeyRefreshToken,
	StorageKeyAccessTokenExpires,
}

// Server-side cookie names.
const (
	CookieAuthState    = "orbit_auth_state"
	CookieCodeVerifier = "orbit_auth_code_verifier"
	CookieCallbackURL  = "orbit_auth_callback_url"
	CookieAccessToken  = "orbit_access_token"
	CookieRefreshToken = "orbit_refresh_token"
)

const (
	// RefreshCookieMaxAge is the lifetime of the refresh token cookie.
	RefreshCookieMaxAge = 30 * 24 * time.Hour
	// PendingCookieMaxAge bounds how long a sign-in may take to come back.
	PendingCookieMaxAge = 10 * time.Minute
)
