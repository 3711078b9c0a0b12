package session_test

import (
	"math"
	"testing"
	"time"

	"github.com/jrsteele09/go-orbit-auth/autherrors"
	"github.com/jrsteele09/go-orbit-auth/session"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestParseTokenResponse(t *testing.T) {
	t.Run("empty object", func(t *testing.T) {
		_, err := session.ParseTokenResponse([]byte(`{}`), now)
		require.True(t, autherrors.IsKind(err, autherrors.TokenExchangeFailed))
		require.ErrorIs(t, err, session.ErrMissingAccessToken)
	})

	t.Run("minimal", func(t *testing.T) {
		tokens, err := session.ParseTokenResponse([]byte(`{"access_token":"a","expires_in":3600}`), now)
		require.NoError(t, err)
		require.Equal(t, "a", tokens.AccessToken)
		require.WithinDuration(t, now.Add(3600*time.Second), tokens.AccessTokenExpiresAt, time.Second)
		require.Empty(t, tokens.RefreshToken)
	})

	t.Run("all fields", func(t *testing.T) {
		raw := `{"access_token":"AT","expires_in":60,"refresh_token":"RT","scope":"openid email","token_type":"Bearer","id_token":"IDT"}`
		tokens, err := session.ParseTokenResponse([]byte(raw), now)
		require.NoError(t, err)
		require.Equal(t, session.Tokens{
			AccessToken:          "AT",
			RefreshToken:         "RT",
			AccessTokenExpiresAt: now.Add(time.Minute),
			Scope:                "openid email",
			TokenType:            "Bearer",
			IDToken:              "IDT",
		}, tokens)
	})

	t.Run("fractional expires_in", func(t *testing.T) {
		tokens, err := session.ParseTokenResponse([]byte(`{"access_token":"a","expires_in":1.5}`), now)
		require.NoError(t, err)
		require.Equal(t, now.Add(1500*time.Millisecond), tokens.AccessTokenExpiresAt)
	})

	t.Run("huge expires_in stays in the future", func(t *testing.T) {
		for _, raw := range []string{
			`{"access_token":"a","expires_in":1e10}`,
			`{"access_token":"a","expires_in":1e300}`,
		} {
			tokens, err := session.ParseTokenResponse([]byte(raw), now)
			require.NoError(t, err)
			require.True(t, tokens.AccessTokenExpiresAt.After(now.AddDate(200, 0, 0)), raw)
		}
	})

	t.Run("zero expires_in expires now", func(t *testing.T) {
		tokens, err := session.ParseTokenResponse([]byte(`{"access_token":"a","expires_in":0}`), now)
		require.NoError(t, err)
		require.Equal(t, now, tokens.AccessTokenExpiresAt)
	})

	t.Run("wrong typed optionals are absent", func(t *testing.T) {
		raw := `{"access_token":"a","expires_in":10,"refresh_token":42,"scope":["x"],"token_type":null,"id_token":true}`
		tokens, err := session.ParseTokenResponse([]byte(raw), now)
		require.NoError(t, err)
		require.Empty(t, tokens.RefreshToken)
		require.Empty(t, tokens.Scope)
		require.Empty(t, tokens.TokenType)
		require.Empty(t, tokens.IDToken)
	})

	failures := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `not json`, session.ErrNotObject},
		{"array", `[{"access_token":"a"}]`, session.ErrNotObject},
		{"string", `"a"`, session.ErrNotObject},
		{"null", `null`, session.ErrNotObject},
		{"empty access token", `{"access_token":"","expires_in":1}`, session.ErrMissingAccessToken},
		{"numeric access token", `{"access_token":5,"expires_in":1}`, session.ErrMissingAccessToken},
		{"missing expires_in", `{"access_token":"a"}`, session.ErrMissingExpiresIn},
		{"string expires_in", `{"access_token":"a","expires_in":"3600"}`, session.ErrMissingExpiresIn},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			_, err := session.ParseTokenResponse([]byte(tc.raw), now)
			require.Error(t, err)
			require.Equal(t, autherrors.TokenExchangeFailed, autherrors.KindOf(err))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseUserInfo(t *testing.T) {
	t.Run("required claims", func(t *testing.T) {
		user, err := session.ParseUserInfo([]byte(`{"sub":"u1","email":"a@b.com","name":"A"}`))
		require.NoError(t, err)
		require.Equal(t, session.User{ID: "u1", Email: "a@b.com", Name: "A"}, user)
	})

	t.Run("optional claims", func(t *testing.T) {
		user, err := session.ParseUserInfo([]byte(`{"sub":"u1","email":"a@b.com","name":"A","picture":"https://img/a.png","email_verified":true}`))
		require.NoError(t, err)
		require.Equal(t, "https://img/a.png", user.Image)
		require.True(t, user.EmailVerified)
	})

	t.Run("wrong typed optional claims", func(t *testing.T) {
		user, err := session.ParseUserInfo([]byte(`{"sub":"u1","email":"a@b.com","name":"A","picture":1,"email_verified":"true"}`))
		require.NoError(t, err)
		require.Empty(t, user.Image)
		require.False(t, user.EmailVerified)
	})

	failures := []struct {
		name string
		raw  string
		want error
	}{
		{"not object", `[]`, session.ErrNotObject},
		{"missing sub", `{"email":"a@b.com","name":"A"}`, session.ErrMissingSub},
		{"empty email", `{"sub":"u1","email":"","name":"A"}`, session.ErrMissingEmail},
		{"missing name", `{"sub":"u1","email":"a@b.com"}`, session.ErrMissingName},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			_, err := session.ParseUserInfo([]byte(tc.raw))
			require.Equal(t, autherrors.UserNotFound, autherrors.KindOf(err))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseTokenPayload(t *testing.T) {
	t.Run("defaults expires_in", func(t *testing.T) {
		p, err := session.ParseTokenPayload([]byte(`{"access_token":"AT"}`))
		require.NoError(t, err)
		require.Equal(t, session.TokenPayload{AccessToken: "AT", ExpiresIn: 3600}, p)
	})

	t.Run("keeps refresh token", func(t *testing.T) {
		p, err := session.ParseTokenPayload([]byte(`{"access_token":"AT","expires_in":120,"refresh_token":"RT"}`))
		require.NoError(t, err)
		require.Equal(t, session.TokenPayload{AccessToken: "AT", RefreshToken: "RT", ExpiresIn: 120}, p)
	})

	t.Run("huge expires_in is clamped", func(t *testing.T) {
		p, err := session.ParseTokenPayload([]byte(`{"access_token":"AT","expires_in":1e300}`))
		require.NoError(t, err)
		require.Equal(t, int(math.MaxInt64/int64(time.Second)), p.ExpiresIn)

		p, err = session.ParseTokenPayload([]byte(`{"access_token":"AT","expires_in":1e10}`))
		require.NoError(t, err)
		require.Equal(t, int(math.MaxInt64/int64(time.Second)), p.ExpiresIn)
	})

	t.Run("requires access token", func(t *testing.T) {
		_, err := session.ParseTokenPayload([]byte(`{"expires_in":120}`))
		require.ErrorIs(t, err, session.ErrMissingAccessToken)
	})
}

func TestParseUserClaims(t *testing.T) {
	user, err := session.ParseUserClaims([]byte(`{"sub":"u1"}`))
	require.NoError(t, err)
	require.Equal(t, session.User{ID: "u1"}, user)

	_, err = session.ParseUserClaims([]byte(`{"sub":7}`))
	require.ErrorIs(t, err, session.ErrMissingSub)
}

func TestSessionExpired(t *testing.T) {
	s := session.Session{ExpiresAt: now}
	require.False(t, s.Expired(now))
	require.True(t, s.Expired(now.Add(time.Millisecond)))
}

func TestTokensOAuth2Token(t *testing.T) {
	tokens := session.Tokens{AccessToken: "AT", RefreshToken: "RT", TokenType: "Bearer", AccessTokenExpiresAt: now, IDToken: "IDT"}
	tok := tokens.OAuth2Token()
	require.Equal(t, "AT", tok.AccessToken)
	require.Equal(t, "RT", tok.RefreshToken)
	require.Equal(t, now, tok.Expiry)
	require.Equal(t, "IDT", tok.Extra("id_token"))
}
