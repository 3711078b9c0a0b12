package testprovider

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v4"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-orbit-auth/oauth2"
)

// tokenResponse is issued for both grants. The caller holds p.mu.
func (p *Provider) tokenResponse(issuer string, g grant, refreshToken string) (*oauth2.TokenResponse, error) {
	now := p.now()
	accessToken, err := p.sign(jwtlib.MapClaims{
		"iss":       issuer,
		"sub":       g.userSub,
		"aud":       g.clientID,
		"client_id": g.clientID,
		"scope":     g.scope,
		"iat":       now.Unix(),
		"exp":       now.Add(p.accessTokenTTL).Unix(),
		"jti":       uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	resp := &oauth2.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		Scope:        g.scope,
	}
	if !p.omitExpiresIn {
		resp.ExpiresIn = int(p.accessTokenTTL.Seconds())
	}

	if hasScope(g.scope, "openid") {
		u := p.users[g.userSub]
		idToken, err := p.sign(jwtlib.MapClaims{
			"iss":   issuer,
			"sub":   u.Sub,
			"aud":   g.clientID,
			"email": u.Email,
			"name":  u.Name,
			"iat":   now.Unix(),
			"exp":   now.Add(p.accessTokenTTL).Unix(),
			"jti":   uuid.NewString(),
		})
		if err != nil {
			return nil, err
		}
		resp.IdToken = idToken
	}
	return resp, nil
}

func (p *Provider) sign(claims jwtlib.MapClaims) (string, error) {
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	token.Header["kid"] = p.keyID
	signed, err := token.SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, nil
}

// parseAccessToken validates an access token and returns its claims. The caller holds p.mu.
func (p *Provider) parseAccessToken(raw string) (jwtlib.MapClaims, error) {
	claims := jwtlib.MapClaims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		return &p.key.PublicKey, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodRS256.Alg()}), jwtlib.WithTimeFunc(p.now))
	if err != nil {
		return nil, err
	}
	if jti, _ := claims["jti"].(string); p.revoked[jti] {
		return nil, fmt.Errorf("token revoked")
	}
	return claims, nil
}

// JWKS returns the public signing key set.
func (p *Provider) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &p.key.PublicKey,
		KeyID:     p.keyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}}
}

func checkCodeChallenge(challenge, verifier, method string) bool {
	if challenge == "" {
		return true
	}
	if method != string(oauth2.CodeMethodTypeS256) {
		return false
	}
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:]) == challenge
}

func hasScope(scope, want string) bool {
	for _, s := range strings.Fields(scope) {
		if s == want {
			return true
		}
	}
	return false
}
