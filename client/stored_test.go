package client_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/jrsteele09/go-orbit-auth/autherrors"
	"github.com/jrsteele09/go-orbit-auth/client"
	"github.com/jrsteele09/go-orbit-auth/internal/testprovider"
	"github.com/jrsteele09/go-orbit-auth/internal/testprovider/providertest"
	"github.com/jrsteele09/go-orbit-auth/metrics"
	"github.com/jrsteele09/go-orbit-auth/oauth2"
	"github.com/jrsteele09/go-orbit-auth/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestGetStoredSession(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing stored", func(t *testing.T) {
		f := newFixture(t, "http://auth.invalid")
		require.Nil(t, f.client.GetStoredSession(ctx))
		require.Equal(t, int32(0), f.calls.Load())
	})

	t.Run("valid token", func(t *testing.T) {
		p, srv := providertest.NewServer(t)
		f := newFixture(t, srv.URL)
		tokens := signInWithProvider(t, f)
		expiresAt := time.UnixMilli(time.Now().Add(time.Hour).UnixMilli())
		f.storeTokens(t, tokens, "", expiresAt)

		sess := f.client.GetStoredSession(ctx)
		require.NotNil(t, sess)
		require.Equal(t, "u1", sess.User.ID)
		require.Equal(t, tokens, sess.AccessToken)
		require.True(t, expiresAt.Equal(sess.ExpiresAt))
		require.Equal(t, 1, p.Calls(testprovider.EndpointToken), "no refresh for a live token")
	})

	t.Run("expired token is refreshed once", func(t *testing.T) {
		p, srv := providertest.NewServer(t)
		f := newFixture(t, srv.URL)
		refresh := p.IssueRefreshToken(providertest.ClientID, providertest.User.Sub, "openid profile email")
		f.storeTokens(t, "stale", refresh, time.Now().Add(-time.Minute))

		sess := f.client.GetStoredSession(ctx)
		require.NotNil(t, sess)
		require.Equal(t, 1, p.Calls(testprovider.EndpointToken))
		require.Equal(t, 1, p.Calls(testprovider.EndpointUserInfo))
		require.NotEqual(t, "stale", sess.AccessToken)
		require.Equal(t, refresh, sess.RefreshToken)
		require.Equal(t, sess.AccessToken, f.get(t, oauth2.StorageKeyAccessToken))
		require.True(t, sess.ExpiresAt.After(time.Now()))
	})

	t.Run("failed refresh clears the session", func(t *testing.T) {
		p, srv := providertest.NewServer(t)
		f := newFixture(t, srv.URL)
		p.FailNext(testprovider.EndpointToken, testprovider.Failure{Status: http.StatusInternalServerError})
		f.storeTokens(t, "stale", "RT", time.Now().Add(-time.Minute))

		require.Nil(t, f.client.GetStoredSession(ctx))
		require.Equal(t, 1, p.Calls(testprovider.EndpointToken))
		require.Equal(t, 0, p.Calls(testprovider.EndpointUserInfo))
		require.Equal(t, 0, f.store.Len())
	})

	t.Run("expired without refresh token clears the session", func(t *testing.T) {
		f := newFixture(t, "http://auth.invalid")
		f.storeTokens(t, "stale", "", time.Now().Add(-time.Minute))

		require.Nil(t, f.client.GetStoredSession(ctx))
		require.Equal(t, int32(0), f.calls.Load())
		require.Equal(t, 0, f.store.Len())
	})

	t.Run("rejected live token keeps storage", func(t *testing.T) {
		p, srv := providertest.NewServer(t)
		f := newFixture(t, srv.URL)
		f.storeTokens(t, "not-a-jwt", "RT", time.Now().Add(time.Hour))

		require.Nil(t, f.client.GetStoredSession(ctx))
		require.Equal(t, 1, p.Calls(testprovider.EndpointUserInfo))
		require.Equal(t, "not-a-jwt", f.get(t, oauth2.StorageKeyAccessToken))
	})

	t.Run("missing expiry counts as fresh", func(t *testing.T) {
		provider := &scriptedProvider{userInfoBody: `{"sub":"u1","email":"a@b.com","name":"A"}`}
		srv := provider.start(t)
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		f := newFixture(t, srv.URL, client.WithClock(func() time.Time { return now }))
		f.set(t, oauth2.StorageKeyAccessToken, "AT")
		f.set(t, oauth2.StorageKeyAccessTokenExpires, "garbage")

		sess := f.client.GetStoredSession(ctx)
		require.NotNil(t, sess)
		require.Equal(t, now.Add(time.Hour), sess.ExpiresAt)
	})

	t.Run("local storage policy", func(t *testing.T) {
		provider := &scriptedProvider{userInfoBody: `{"sub":"u1","email":"a@b.com","name":"A"}`}
		srv := provider.start(t)
		local := storage.NewInMemoryStore(0)
		c, err := client.New(client.Config{BaseURL: srv.URL, ClientID: "c", Storage: client.LocalStorage}, client.WithLocalStore(local))
		require.NoError(t, err)
		require.NoError(t, local.Set(ctx, oauth2.StorageKeyAccessToken, "AT"))

		require.NotNil(t, c.GetStoredSession(ctx))
	})

	t.Run("no store", func(t *testing.T) {
		c, err := client.New(client.Config{BaseURL: "http://auth.invalid", ClientID: "c"}, client.WithSessionStore(nil))
		require.NoError(t, err)
		require.Nil(t, c.GetStoredSession(ctx))
	})
}

// signInWithProvider runs a full sign-in and returns the issued access token.
func signInWithProvider(t *testing.T, f *fixture) string {
	t.Helper()
	ctx := context.Background()
	res, err := f.client.SignIn(ctx, client.SignInOptions{DisableRedirect: true})
	require.NoError(t, err)
	u, err := url.Parse(followAuthorize(t, res.RedirectURL))
	require.NoError(t, err)
	sess, err := f.client.HandleCallbackURL(ctx, u)
	require.NoError(t, err)
	return sess.AccessToken
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes and clears", func(t *testing.T) {
		provider := &scriptedProvider{}
		srv := provider.start(t)
		f := newFixture(t, srv.URL)
		f.storeTokens(t, "AT", "RT", time.Now().Add(time.Hour))

		require.NoError(t, f.client.SignOut(ctx))
		require.Len(t, provider.revoked, 1)
		require.Equal(t, "AT", provider.revoked[0].Get("token"))
		require.Equal(t, providertest.ClientID, provider.revoked[0].Get("client_id"))
		require.Equal(t, 0, f.store.Len())
	})

	t.Run("revocation failure is ignored", func(t *testing.T) {
		provider := &scriptedProvider{revokeStatus: http.StatusInternalServerError}
		srv := provider.start(t)
		f := newFixture(t, srv.URL)
		f.storeTokens(t, "AT", "RT", time.Now().Add(time.Hour))

		require.NoError(t, f.client.SignOut(ctx))
		require.Equal(t, 0, f.store.Len())
	})

	t.Run("unreachable provider is ignored", func(t *testing.T) {
		f := newFixture(t, "http://127.0.0.1:1")
		f.storeTokens(t, "AT", "", time.Now().Add(time.Hour))

		require.NoError(t, f.client.SignOut(ctx))
		require.Equal(t, 0, f.store.Len())
	})

	t.Run("nothing stored skips revocation", func(t *testing.T) {
		f := newFixture(t, "http://auth.invalid")
		require.NoError(t, f.client.SignOut(ctx))
		require.Equal(t, int32(0), f.calls.Load())
	})

	t.Run("keeps the pending authorization", func(t *testing.T) {
		f := newFixture(t, "http://auth.invalid")
		f.set(t, oauth2.StorageKeyState, "S")
		require.NoError(t, f.client.ClearSession(ctx))
		require.Equal(t, "S", f.get(t, oauth2.StorageKeyState))
	})
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()

	t.Run("handles a callback url", func(t *testing.T) {
		_, srv := providertest.NewServer(t)
		f := newFixture(t, srv.URL)
		res, err := f.client.SignIn(ctx, client.SignInOptions{DisableRedirect: true})
		require.NoError(t, err)
		require.NoError(t, f.history.Navigate(ctx, followAuthorize(t, res.RedirectURL)))

		sess, err := f.client.Bootstrap(ctx)
		require.NoError(t, err)
		require.NotNil(t, sess)
	})

	t.Run("surfaces provider errors", func(t *testing.T) {
		f := newFixture(t, "http://auth.invalid")
		require.NoError(t, f.history.Navigate(ctx, "/?error=access_denied"))
		_, err := f.client.Bootstrap(ctx)
		require.True(t, autherrors.IsKind(err, autherrors.AuthorizationFailed))
	})

	t.Run("restores otherwise", func(t *testing.T) {
		provider := &scriptedProvider{userInfoBody: `{"sub":"u1","email":"a@b.com","name":"A"}`}
		srv := provider.start(t)
		f := newFixture(t, srv.URL)
		f.storeTokens(t, "AT", "", time.Now().Add(time.Hour))

		sess, err := f.client.Bootstrap(ctx)
		require.NoError(t, err)
		require.Equal(t, "AT", sess.AccessToken)
	})

	t.Run("restores when callback params are empty", func(t *testing.T) {
		provider := &scriptedProvider{userInfoBody: `{"sub":"u1","email":"a@b.com","name":"A"}`}
		srv := provider.start(t)
		f := newFixture(t, srv.URL)
		f.storeTokens(t, "AT", "", time.Now().Add(time.Hour))
		require.NoError(t, f.history.Navigate(ctx, "/page?code=&error=&x=1"))

		sess, err := f.client.Bootstrap(ctx)
		require.NoError(t, err)
		require.NotNil(t, sess)
		require.Equal(t, "AT", sess.AccessToken)
	})
}

func TestTokenSource(t *testing.T) {
	ctx := context.Background()

	t.Run("serves a live token", func(t *testing.T) {
		f := newFixture(t, "http://auth.invalid")
		f.storeTokens(t, "AT", "RT", time.Now().Add(time.Hour))

		tok, err := f.client.TokenSource(ctx).Token()
		require.NoError(t, err)
		require.Equal(t, "AT", tok.AccessToken)
		require.Equal(t, "Bearer", tok.Type())
		require.Equal(t, int32(0), f.calls.Load())
	})

	t.Run("refreshes and persists", func(t *testing.T) {
		provider := &scriptedProvider{tokenBody: `{"access_token":"AT2","expires_in":3600}`}
		srv := provider.start(t)
		f := newFixture(t, srv.URL)
		f.storeTokens(t, "AT", "RT", time.Now().Add(-time.Minute))

		tok, err := f.client.TokenSource(ctx).Token()
		require.NoError(t, err)
		require.Equal(t, "AT2", tok.AccessToken)
		require.Equal(t, "AT2", f.get(t, oauth2.StorageKeyAccessToken))
		require.Equal(t, "RT", f.get(t, oauth2.StorageKeyRefreshToken))
	})

	t.Run("no session", func(t *testing.T) {
		f := newFixture(t, "http://auth.invalid")
		_, err := f.client.TokenSource(ctx).Token()
		require.True(t, autherrors.IsKind(err, autherrors.SessionNotFound))
	})
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	f := newFixture(t, "http://auth.invalid", client.WithMetrics(m))
	u, _ := url.Parse("http://app.test/?code=X&state=S")
	_, err = f.client.HandleCallbackURL(ctx, u)
	require.Error(t, err)

	count, err := testutil.GatherAndCount(reg, "orbit_auth_operations_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
