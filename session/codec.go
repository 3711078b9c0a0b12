package session

import (
	"errors"
	"math"
	"time"

	"github.com/jrsteele09/go-orbit-auth/autherrors"
	"github.com/tidwall/gjson"
)

// Validation failures reported by the decoders. They are wrapped in an
// *autherrors.Error carrying the kind for the endpoint that produced the payload.
var (
	ErrNotObject          = errors.New("payload is not a JSON object")
	ErrMissingAccessToken = errors.New("missing access_token")
	ErrMissingExpiresIn   = errors.New("missing expires_in")
	ErrMissingSub         = errors.New("missing sub")
	ErrMissingEmail       = errors.New("missing email")
	ErrMissingName        = errors.New("missing name")
)

// defaultPayloadExpiresIn is used by the lenient server-side decoder only.
const defaultPayloadExpiresIn = 3600

// ParseTokenResponse decodes a token endpoint body. access_token and expires_in are
// required; optional string fields with the wrong type are dropped.
func ParseTokenResponse(raw []byte, now time.Time) (Tokens, error) {
	record, ok := object(raw)
	if !ok {
		return Tokens{}, autherrors.Wrap(autherrors.TokenExchangeFailed, ErrNotObject, "Invalid token response")
	}

	accessToken, ok := nonEmptyString(record, "access_token")
	if !ok {
		return Tokens{}, autherrors.Wrap(autherrors.TokenExchangeFailed, ErrMissingAccessToken, "Token response missing access_token")
	}
	expiresIn := record.Get("expires_in")
	if expiresIn.Type != gjson.Number {
		return Tokens{}, autherrors.Wrap(autherrors.TokenExchangeFailed, ErrMissingExpiresIn, "Token response missing expires_in")
	}

	return Tokens{
		AccessToken:          accessToken,
		RefreshToken:         optionalString(record, "refresh_token"),
		AccessTokenExpiresAt: now.Add(seconds(expiresIn.Num)),
		Scope:                optionalString(record, "scope"),
		TokenType:            optionalString(record, "token_type"),
		IDToken:              optionalString(record, "id_token"),
	}, nil
}

// ParseUserInfo decodes a userinfo body. sub, email and name must be non-empty strings.
func ParseUserInfo(raw []byte) (User, error) {
	record, ok := object(raw)
	if !ok {
		return User{}, autherrors.Wrap(autherrors.UserNotFound, ErrNotObject, "Invalid userinfo response")
	}

	sub, ok := nonEmptyString(record, "sub")
	if !ok {
		return User{}, autherrors.Wrap(autherrors.UserNotFound, ErrMissingSub, "userinfo missing sub")
	}
	email, ok := nonEmptyString(record, "email")
	if !ok {
		return User{}, autherrors.Wrap(autherrors.UserNotFound, ErrMissingEmail, "userinfo missing email")
	}
	name, ok := nonEmptyString(record, "name")
	if !ok {
		return User{}, autherrors.Wrap(autherrors.UserNotFound, ErrMissingName, "userinfo missing name")
	}

	return User{
		ID:            sub,
		Email:         email,
		Name:          name,
		Image:         optionalString(record, "picture"),
		EmailVerified: optionalBool(record, "email_verified"),
	}, nil
}

// TokenPayload is the reduced token view used by the cookie handlers.
type TokenPayload struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// ParseTokenPayload is the lenient decoder used by the cookie handlers: only
// access_token is required and a missing expires_in falls back to one hour.
func ParseTokenPayload(raw []byte) (TokenPayload, error) {
	record, ok := object(raw)
	if !ok {
		return TokenPayload{}, ErrNotObject
	}
	accessToken, ok := nonEmptyString(record, "access_token")
	if !ok {
		return TokenPayload{}, ErrMissingAccessToken
	}
	expiresIn := defaultPayloadExpiresIn
	if v := record.Get("expires_in"); v.Type == gjson.Number {
		expiresIn = clampSeconds(v.Float())
	}
	return TokenPayload{
		AccessToken:  accessToken,
		RefreshToken: optionalString(record, "refresh_token"),
		ExpiresIn:    expiresIn,
	}, nil
}

// ParseUserClaims is the lenient userinfo decoder used by the cookie handlers: only a
// string sub is required, email and name default to "".
func ParseUserClaims(raw []byte) (User, error) {
	record, ok := object(raw)
	if !ok {
		return User{}, ErrNotObject
	}
	sub := record.Get("sub")
	if sub.Type != gjson.String {
		return User{}, ErrMissingSub
	}
	return User{
		ID:            sub.Str,
		Email:         optionalString(record, "email"),
		Name:          optionalString(record, "name"),
		Image:         optionalString(record, "picture"),
		EmailVerified: optionalBool(record, "email_verified"),
	}, nil
}

func object(raw []byte) (gjson.Result, bool) {
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, false
	}
	record := gjson.ParseBytes(raw)
	return record, record.IsObject()
}

func nonEmptyString(record gjson.Result, field string) (string, bool) {
	v := record.Get(field)
	if v.Type != gjson.String || v.Str == "" {
		return "", false
	}
	return v.Str, true
}

func optionalString(record gjson.Result, field string) string {
	v := record.Get(field)
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}

func optionalBool(record gjson.Result, field string) bool {
	v := record.Get(field)
	return v.IsBool() && v.Bool()
}

// maxSeconds is the largest whole number of seconds a time.Duration can hold.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// seconds converts n seconds to a Duration, saturating instead of overflowing.
func seconds(n float64) time.Duration {
	switch {
	case n >= float64(maxSeconds):
		return time.Duration(math.MaxInt64)
	case n <= -float64(maxSeconds):
		return time.Duration(math.MinInt64)
	}
	return time.Duration(n * float64(time.Second))
}

// clampSeconds bounds a lenient expires_in to what a Duration can represent.
func clampSeconds(n float64) int {
	switch {
	case n >= float64(maxSeconds):
		return int(maxSeconds)
	case n <= -float64(maxSeconds):
		return -int(maxSeconds)
	}
	return int(n)
}
