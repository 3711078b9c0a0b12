// Package oauth2 holds the wire-level vocabulary of the Orbit OAuth 2.1 / OIDC endpoints:
// grant types, parameter names, endpoint paths, and the storage keys and cookie names the
// SDK persists.
package oauth2

// ResponseType represents the OAuth 2.0 response type.
type ResponseType string

const (
	// CodeResponseType indicates the authorization code flow.
	// Example: /oauth2/authorize?response_type=code&client_id=...
	CodeResponseType ResponseType = "code"
)

// CodeMethodType represents the PKCE (Proof Key for Code Exchange) challenge method.
type CodeMethodType string

const (
	// CodeMethodTypeS256 indicates SHA-256 hashing is used for the code challenge.
	// Client sends: code_challenge = BASE64URL(SHA256(code_verifier))
	// Server validates: SHA256(provided code_verifier) == stored code_challenge
	CodeMethodTypeS256 CodeMethodType = "S256"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Token request includes: code, client_id, redirect_uri, code_verifier, client_secret (confidential)
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenGrant exchanges a refresh token for new tokens.
	// Token request includes: refresh_token, client_id, client_secret (confidential)
	// The provider may or may not rotate the refresh token.
	RefreshTokenGrant GrantType = "refresh_token"
)

// Endpoint paths, relative to the configured path prefix.
const (
	AuthorizePath = "/authorize"
	TokenPath     = "/token"
	UserInfoPath  = "/userinfo"
	RevokePath    = "/revoke"

	// DefaultPathPrefix puts the endpoints at {baseURL}/oauth2/*.
	DefaultPathPrefix = "/oauth2"

	// JWKSPath is served at the provider root.
	JWKSPath = "/.well-known/jwks.json"
)

// Query and form parameter names.
const (
	ParamClientID            = "client_id"
	ParamClientSecret        = "client_secret"
	ParamResponseType        = "response_type"
	ParamRedirectURI         = "redirect_uri"
	ParamScope               = "scope"
	ParamState               = "state"
	ParamCode                = "code"
	ParamCodeChallenge       = "code_challenge"
	ParamCodeChallengeMethod = "code_challenge_method"
	ParamCodeVerifier        = "code_verifier"
	ParamGrantType           = "grant_type"
	ParamRefreshToken        = "refresh_token"
	ParamToken               = "token"
	ParamError               = "error"
	ParamErrorDescription    = "error_description"
	ParamErrorCallbackURL    = "error_callback_url"
	ParamNewUserCallbackURL  = "new_user_callback_url"
	ParamCallbackURL         = "callback_url"
)

// Standard scopes requested when neither the sign-in call nor the config name any.
var DefaultScopes = []string{"openid", "profile", "email"}
