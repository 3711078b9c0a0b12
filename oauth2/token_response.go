package oauth2

// TokenResponse represents the response from the /token endpoint for both the
// authorization_code and refresh_token grants (RFC 6749 section 5.1).
type TokenResponse struct {
	// AccessToken is presented as "Authorization: Bearer <access_token>" to /userinfo.
	// Required: a non-empty string.
	AccessToken string `json:"access_token"`

	// ExpiresIn is the lifetime in seconds of the access token. The client flow requires
	// it; zero is omitted so a provider can leave it out.
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is omitted when the provider does not rotate it on refresh.
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope indicates the access token's granted permissions, space separated.
	Scope string `json:"scope,omitempty"`

	// TokenType is "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// IdToken is the OpenID Connect ID token; only present when "openid" was requested.
	IdToken string `json:"id_token,omitempty"`
}

// UserInfoResponse holds the OIDC claims returned by /userinfo.
type UserInfoResponse struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

// ErrorResponse is the RFC 6749 section 5.2 error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
