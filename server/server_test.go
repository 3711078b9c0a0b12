package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrsteele09/go-orbit-auth/internal/config"
	"github.com/jrsteele09/go-orbit-auth/internal/testprovider/providertest"
	"github.com/jrsteele09/go-orbit-auth/oauth2"
	"github.com/jrsteele09/go-orbit-auth/server"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, providerURL string) *server.Server {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("ORBIT_AUTH_URL", providerURL)
	t.Setenv("ORBIT_CLIENT_ID", providertest.ClientID)
	t.Setenv("ORBIT_CLIENT_SECRET", "")
	t.Setenv("TRUSTED_ORIGINS", "https://app.example.com")
	t.Setenv("COOKIE_SECRET", "")
	t.Setenv("ORBIT_STRICT_STATE", "")

	s, err := server.New(config.New(), server.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return s
}

func do(s http.Handler, method, target string, header http.Header, cookies ...*http.Cookie) *http.Response {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec.Result()
}

func signIn(t *testing.T, s http.Handler) []*http.Cookie {
	t.Helper()
	resp := do(s, http.MethodGet, "http://app.test/api/auth/signin?callback_url=/", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	noRedirect := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	providerResp, err := noRedirect.Get(resp.Header.Get("Location"))
	require.NoError(t, err)
	providerResp.Body.Close()

	resp = do(s, http.MethodGet, providerResp.Header.Get("Location"), nil, resp.Cookies()...)
	require.Equal(t, "http://app.test/?authenticated=true", resp.Header.Get("Location"))
	var tokens []*http.Cookie
	for _, c := range resp.Cookies() {
		if c.MaxAge > 0 {
			tokens = append(tokens, c)
		}
	}
	require.Len(t, tokens, 2)
	return tokens
}

func TestNew(t *testing.T) {
	t.Setenv("ORBIT_CLIENT_ID", "")
	_, err := server.New(config.New(), server.WithLogger(zerolog.Nop()))
	require.Error(t, err)
}

func TestSignInFlow(t *testing.T) {
	_, provider := providertest.NewServer(t)
	s := newServer(t, provider.URL)
	cookies := signIn(t, s)

	resp := do(s, http.MethodGet, "http://app.test/api/auth/session", nil, cookies...)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotNil(t, body["user"])

	resp = do(s, http.MethodGet, "http://app.test/", nil, cookies...)
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(page), "Signed in as A (a@b.com)")
	require.Equal(t, "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))

	resp = do(s, http.MethodPost, "http://app.test/api/auth/refresh", nil, cookies...)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(s, http.MethodPost, "http://app.test/api/auth/signout", nil, cookies...)
	require.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestSessionCheck(t *testing.T) {
	_, provider := providertest.NewServer(t)
	s := newServer(t, provider.URL)

	t.Run("anonymous", func(t *testing.T) {
		resp := do(s, http.MethodGet, "http://app.test/api/auth/session-check", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		require.JSONEq(t, `{"authenticated":false}`, string(body))
	})

	t.Run("signed in", func(t *testing.T) {
		cookies := signIn(t, s)
		header := http.Header{"Origin": {"http://localhost:5173"}}
		resp := do(s, http.MethodGet, "http://app.test/api/auth/session-check", header, cookies...)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		require.JSONEq(t, `{"authenticated":true,"user":{"id":"u1","email":"a@b.com","name":"A"}}`, string(body))
		require.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
		require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	})

	t.Run("provider unreachable", func(t *testing.T) {
		s := newServer(t, "http://127.0.0.1:1")
		resp := do(s, http.MethodGet, "http://app.test/api/auth/session-check", nil,
			&http.Cookie{Name: oauth2.CookieAccessToken, Value: "AT"})
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		require.JSONEq(t, `{"authenticated":false,"error":"Failed to check session"}`, string(body))
	})

	preflight := []struct {
		origin  string
		allowed bool
	}{
		{"http://localhost:5173", true},
		{"http://127.0.0.1:8080", true},
		{"http://docs.localhost", true},
		{"https://app.example.com", true},
		{provider.URL, true},
		{"https://evil.example.com", false},
	}
	for _, tc := range preflight {
		t.Run("preflight "+tc.origin, func(t *testing.T) {
			header := http.Header{
				"Origin":                        {tc.origin},
				"Access-Control-Request-Method": {http.MethodGet},
			}
			resp := do(s, http.MethodOptions, "http://app.test/api/auth/session-check", header)
			require.Equal(t, http.StatusNoContent, resp.StatusCode)
			if !tc.allowed {
				require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
				return
			}
			require.Equal(t, tc.origin, resp.Header.Get("Access-Control-Allow-Origin"))
			require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
			require.Equal(t, "86400", resp.Header.Get("Access-Control-Max-Age"))
		})
	}
}

func TestMiddleware(t *testing.T) {
	_, provider := providertest.NewServer(t)
	s := newServer(t, provider.URL)

	t.Run("request id", func(t *testing.T) {
		resp := do(s, http.MethodGet, "http://app.test/health", nil)
		require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

		resp = do(s, http.MethodGet, "http://app.test/health", http.Header{"X-Request-Id": {"abc"}})
		require.Equal(t, "abc", resp.Header.Get("X-Request-ID"))
	})

	t.Run("recover", func(t *testing.T) {
		h := s.RecoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	_, provider := providertest.NewServer(t)
	s := newServer(t, provider.URL)
	do(s, http.MethodGet, "http://app.test/api/auth/signin", nil)

	resp := do(s, http.MethodGet, "http://app.test/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	require.Contains(t, text, `orbit_auth_http_requests_total{method="GET",path="/api/auth/signin",status="302"} 1`)
	require.Contains(t, text, `orbit_auth_operations_total{operation="handler_sign_in",outcome="success"} 1`)
	require.True(t, strings.Contains(text, "orbit_auth_http_request_duration_seconds"))

	count, err := testutil.GatherAndCount(s.Registry(), "orbit_auth_http_requests_total")
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, 1)
}
