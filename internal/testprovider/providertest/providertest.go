// Package providertest starts a testprovider.Provider on an httptest server for package
// tests. Only _test.go files import it.
package providertest

import (
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-orbit-auth/internal/testprovider"
	"github.com/jrsteele09/go-orbit-auth/oauth2"
	"github.com/stretchr/testify/require"
)

// ClientID is the public client registered by NewServer.
const ClientID = "orbit-test-client"

// User is signed in by servers created with NewServer.
var User = testprovider.User{Sub: "u1", Email: "a@b.com", Name: "A"}

// NewServer starts a provider with a public client ClientID and User. The server is
// closed when the test ends.
func NewServer(t testing.TB, opts ...testprovider.Option) (*testprovider.Provider, *httptest.Server) {
	t.Helper()
	p, err := testprovider.New(opts...)
	require.NoError(t, err)
	require.NoError(t, p.RegisterClient(ClientID, ""))
	p.AddUser(User)

	srv := httptest.NewServer(p.Handler(oauth2.DefaultPathPrefix))
	t.Cleanup(srv.Close)
	return p, srv
}
