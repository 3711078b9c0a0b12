package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-orbit-auth/client"
	"github.com/jrsteele09/go-orbit-auth/httpclient"
	"github.com/jrsteele09/go-orbit-auth/internal/testprovider/providertest"
	"github.com/jrsteele09/go-orbit-auth/oauth2"
	"github.com/jrsteele09/go-orbit-auth/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const appURL = "http://app.test/dashboard?tab=1"

type fixture struct {
	client  *client.Client
	store   *storage.InMemoryStore
	history *client.History
	calls   *atomic.Int32
}

// countingDoer counts every outbound request before passing it on.
func countingDoer(calls *atomic.Int32, next httpclient.Doer) httpclient.Doer {
	return httpclient.DoerFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return next.Do(req)
	})
}

func newFixture(t *testing.T, baseURL string, opts ...client.Option) *fixture {
	t.Helper()
	history, err := client.NewHistory(appURL)
	require.NoError(t, err)
	f := &fixture{
		store:   storage.NewInMemoryStore(0),
		history: history,
		calls:   &atomic.Int32{},
	}
	base := []client.Option{
		client.WithSessionStore(f.store),
		client.WithLocation(history),
		client.WithNavigator(history),
		client.WithHTTPClient(countingDoer(f.calls, http.DefaultClient)),
		client.WithLogger(zerolog.Nop()),
	}
	f.client, err = client.New(client.Config{
		BaseURL:  baseURL,
		ClientID: providertest.ClientID,
	}, append(base, opts...)...)
	require.NoError(t, err)
	return f
}

func (f *fixture) get(t *testing.T, key string) string {
	t.Helper()
	v, _, err := f.store.Get(context.Background(), key)
	require.NoError(t, err)
	return v
}

func (f *fixture) set(t *testing.T, key, value string) {
	t.Helper()
	require.NoError(t, f.store.Set(context.Background(), key, value))
}

func (f *fixture) storeTokens(t *testing.T, access, refresh string, expiresAt time.Time) {
	t.Helper()
	f.set(t, oauth2.StorageKeyAccessToken, access)
	f.set(t, oauth2.StorageKeyAccessTokenExpires, strconv.FormatInt(expiresAt.UnixMilli(), 10))
	if refresh != "" {
		f.set(t, oauth2.StorageKeyRefreshToken, refresh)
	}
}

// followAuthorize requests the authorization URL and returns the provider's redirect.
func followAuthorize(t *testing.T, authURL string) string {
	t.Helper()
	noRedirect := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := noRedirect.Get(authURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	return resp.Header.Get("Location")
}

// scriptedProvider answers token and userinfo requests with fixed bodies.
type scriptedProvider struct {
	tokenStatus    int
	tokenBody      string
	userInfoStatus int
	userInfoBody   string
	revokeStatus   int

	tokenForms []url.Values
	bearers    []string
	revoked    []url.Values
}

func (s *scriptedProvider) start(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		s.tokenForms = append(s.tokenForms, r.PostForm)
		w.WriteHeader(orOK(s.tokenStatus))
		_, _ = w.Write([]byte(s.tokenBody))
	})
	mux.HandleFunc("GET /oauth2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		s.bearers = append(s.bearers, r.Header.Get("Authorization"))
		w.WriteHeader(orOK(s.userInfoStatus))
		_, _ = w.Write([]byte(s.userInfoBody))
	})
	mux.HandleFunc("POST /oauth2/revoke", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		s.revoked = append(s.revoked, r.PostForm)
		w.WriteHeader(orOK(s.revokeStatus))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func orOK(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}
