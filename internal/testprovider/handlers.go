package testprovider

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-orbit-auth/oauth2"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Endpoint names accepted by FailNext and Calls.
const (
	EndpointAuthorize = "authorize"
	EndpointToken     = "token"
	EndpointUserInfo  = "userinfo"
	EndpointRevoke    = "revoke"
)

// Handler serves the provider endpoints under pathPrefix (e.g. /oauth2), plus the JWKS
// and discovery documents at the root.
func (p *Provider) Handler(pathPrefix string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+pathPrefix+oauth2.AuthorizePath, p.Authorize())
	mux.HandleFunc("POST "+pathPrefix+oauth2.TokenPath, p.Token())
	mux.HandleFunc("GET "+pathPrefix+oauth2.UserInfoPath, p.UserInfo())
	mux.HandleFunc("POST "+pathPrefix+oauth2.RevokePath, p.Revoke())
	mux.HandleFunc("GET "+oauth2.JWKSPath, p.JWKSHandler())
	mux.HandleFunc("GET /.well-known/openid-configuration", p.WellKnownOpenIDConfig(pathPrefix))
	return mux
}

// Authorize signs in the current user without a login page and redirects back with a code.
func (p *Provider) Authorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f, ok := p.hit(EndpointAuthorize); ok {
			writeFailure(w, f)
			return
		}
		q := r.URL.Query()
		redirectURI := q.Get(oauth2.ParamRedirectURI)
		target, err := url.Parse(redirectURI)
		if err != nil || redirectURI == "" {
			http.Error(w, "Invalid authorization request: redirect_uri is required", http.StatusBadRequest)
			return
		}

		p.mu.Lock()
		defer p.mu.Unlock()

		c, ok := p.clients[q.Get(oauth2.ParamClientID)]
		if !ok {
			http.Error(w, "Invalid authorization request: "+ErrUnknownClient.Error(), http.StatusBadRequest)
			return
		}
		if !c.allowsRedirect(redirectURI) {
			http.Error(w, "Invalid authorization request: "+ErrRedirectMismatch.Error(), http.StatusBadRequest)
			return
		}

		state := q.Get(oauth2.ParamState)
		fail := func(code, description string) {
			params := target.Query()
			params.Set(oauth2.ParamError, code)
			params.Set(oauth2.ParamErrorDescription, description)
			if state != "" {
				params.Set(oauth2.ParamState, state)
			}
			target.RawQuery = params.Encode()
			http.Redirect(w, r, target.String(), http.StatusSeeOther)
		}

		if q.Get(oauth2.ParamResponseType) != string(oauth2.CodeResponseType) {
			fail("unsupported_response_type", "response_type must be code")
			return
		}
		challenge := q.Get(oauth2.ParamCodeChallenge)
		method := q.Get(oauth2.ParamCodeChallengeMethod)
		if c.public() && challenge == "" {
			fail("invalid_request", "code_challenge is required for public clients")
			return
		}
		if challenge != "" && method != string(oauth2.CodeMethodTypeS256) {
			fail("invalid_request", ErrUnsupportedMethod.Error())
			return
		}
		if _, ok := p.users[p.signIn]; !ok {
			fail("access_denied", ErrNoUser.Error())
			return
		}

		code := uuid.NewString()
		p.codes[code] = grant{
			clientID:            c.id,
			userSub:             p.signIn,
			scope:               q.Get(oauth2.ParamScope),
			redirectURI:         redirectURI,
			codeChallenge:       challenge,
			codeChallengeMethod: method,
			issuedAt:            p.now(),
		}

		params := target.Query()
		params.Set(oauth2.ParamCode, code)
		if state != "" {
			params.Set(oauth2.ParamState, state)
		}
		target.RawQuery = params.Encode()
		http.Redirect(w, r, target.String(), http.StatusSeeOther)
	}
}

// Token serves the authorization_code and refresh_token grants.
func (p *Provider) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f, ok := p.hit(EndpointToken); ok {
			writeFailure(w, f)
			return
		}
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}

		p.mu.Lock()
		defer p.mu.Unlock()

		c, err := p.authenticateClient(r.PostFormValue(oauth2.ParamClientID), r.PostFormValue(oauth2.ParamClientSecret))
		if err != nil {
			writeJSONError(w, "invalid_client", err.Error(), http.StatusUnauthorized)
			return
		}

		var resp *oauth2.TokenResponse
		switch oauth2.GrantType(r.PostFormValue(oauth2.ParamGrantType)) {
		case oauth2.AuthorizationCodeGrant:
			resp, err = p.exchangeCode(issuer(r), c, r.PostForm)
		case oauth2.RefreshTokenGrant:
			resp, err = p.refreshGrant(issuer(r), c, r.PostFormValue(oauth2.ParamRefreshToken))
		default:
			writeJSONError(w, "unsupported_grant_type", "grant_type must be authorization_code or refresh_token", http.StatusBadRequest)
			return
		}
		if err != nil {
			writeJSONError(w, "invalid_grant", err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (p *Provider) exchangeCode(iss string, c *client, form url.Values) (*oauth2.TokenResponse, error) {
	code := form.Get(oauth2.ParamCode)
	g, ok := p.codes[code]
	if !ok || g.clientID != c.id {
		return nil, ErrCodeInvalid
	}
	delete(p.codes, code)
	if p.now().Sub(g.issuedAt) > authCodeTimeout {
		return nil, ErrCodeExpired
	}
	if form.Get(oauth2.ParamRedirectURI) != g.redirectURI {
		return nil, ErrRedirectMismatch
	}
	if !checkCodeChallenge(g.codeChallenge, form.Get(oauth2.ParamCodeVerifier), g.codeChallengeMethod) {
		return nil, ErrChallengeFailed
	}

	refreshToken := uuid.NewString()
	g.issuedAt = p.now()
	p.refresh[refreshToken] = g
	return p.tokenResponse(iss, g, refreshToken)
}

func (p *Provider) refreshGrant(iss string, c *client, token string) (*oauth2.TokenResponse, error) {
	g, ok := p.refresh[token]
	if !ok || g.clientID != c.id || p.revoked[token] {
		return nil, ErrRefreshInvalid
	}
	if !p.rotateRefresh {
		return p.tokenResponse(iss, g, "")
	}
	delete(p.refresh, token)
	next := uuid.NewString()
	p.refresh[next] = g
	return p.tokenResponse(iss, g, next)
}

// UserInfo returns the claims of the bearer's user.
func (p *Provider) UserInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f, ok := p.hit(EndpointUserInfo); ok {
			writeFailure(w, f)
			return
		}
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSONError(w, "invalid_token", "Missing Authorization header", http.StatusUnauthorized)
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			writeJSONError(w, "invalid_token", "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		p.mu.Lock()
		defer p.mu.Unlock()

		claims, err := p.parseAccessToken(parts[1])
		if err != nil {
			writeJSONError(w, "invalid_token", err.Error(), http.StatusUnauthorized)
			return
		}
		sub, _ := claims["sub"].(string)
		u, ok := p.users[sub]
		if !ok {
			writeJSONError(w, "invalid_token", "user not found", http.StatusUnauthorized)
			return
		}

		info := oauth2.UserInfoResponse{
			Sub:           u.Sub,
			Email:         u.Email,
			Name:          u.Name,
			Picture:       u.Picture,
			EmailVerified: u.EmailVerified,
		}
		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(info)
	}
}

// Revoke revokes an access or refresh token. Unknown tokens are accepted silently.
func (p *Provider) Revoke() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f, ok := p.hit(EndpointRevoke); ok {
			writeFailure(w, f)
			return
		}
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}
		token := r.PostFormValue(oauth2.ParamToken)
		if token == "" {
			writeJSONError(w, "invalid_request", "token parameter is required", http.StatusBadRequest)
			return
		}

		p.mu.Lock()
		defer p.mu.Unlock()

		if _, err := p.authenticateClient(r.PostFormValue(oauth2.ParamClientID), r.PostFormValue(oauth2.ParamClientSecret)); err != nil {
			writeJSONError(w, "invalid_client", err.Error(), http.StatusUnauthorized)
			return
		}
		if _, ok := p.refresh[token]; ok {
			p.revoked[token] = true
		} else if claims, err := p.parseAccessToken(token); err == nil {
			if jti, _ := claims["jti"].(string); jti != "" {
				p.revoked[jti] = true
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

// JWKSHandler serves the JSON Web Key Set used to validate tokens.
func (p *Provider) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		if err := json.NewEncoder(w).Encode(p.JWKS()); err != nil {
			log.Err(err).Msg("failed to encode JWKS")
		}
	}
}

// WellKnownOpenIDConfig serves the OIDC discovery document.
func (p *Provider) WellKnownOpenIDConfig(pathPrefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		base := issuer(r)
		resp := map[string]any{
			"issuer":                                base,
			"authorization_endpoint":                base + pathPrefix + oauth2.AuthorizePath,
			"token_endpoint":                        base + pathPrefix + oauth2.TokenPath,
			"userinfo_endpoint":                     base + pathPrefix + oauth2.UserInfoPath,
			"revocation_endpoint":                   base + pathPrefix + oauth2.RevokePath,
			"jwks_uri":                              base + oauth2.JWKSPath,
			"response_types_supported":              []string{string(oauth2.CodeResponseType)},
			"subject_types_supported":               []string{"public"},
			"id_token_signing_alg_values_supported": []string{"RS256"},
			"scopes_supported":                      oauth2.DefaultScopes,
			"grant_types_supported":                 []string{string(oauth2.AuthorizationCodeGrant), string(oauth2.RefreshTokenGrant)},
			"code_challenge_methods_supported":      []string{string(oauth2.CodeMethodTypeS256)},
			"token_endpoint_auth_methods_supported": []string{"client_secret_post", "none"},
		}
		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// issuer is the provider origin as seen by the caller.
func issuer(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	} else if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + r.Host
}

func writeFailure(w http.ResponseWriter, f Failure) {
	if f.Body != "" {
		w.Header().Set("Content-Type", contentTypeJSON)
	}
	w.WriteHeader(f.Status)
	_, _ = w.Write([]byte(f.Body))
}

// writeJSONError writes an OAuth2 error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(oauth2.ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}

// AccessTokenTTL is the lifetime of issued access tokens.
func (p *Provider) AccessTokenTTL() time.Duration {
	return p.accessTokenTTL
}
