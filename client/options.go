package client

import (
	"io"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-orbit-auth/httpclient"
	"github.com/jrsteele09/go-orbit-auth/metrics"
	"github.com/jrsteele09/go-orbit-auth/storage"
	"github.com/rs/zerolog"
)

// Option configures a Client.
type Option func(*Client)

// WithSessionStore sets the store used by the session storage policy. A nil store
// disables persistence for that policy.
func WithSessionStore(s storage.Store) Option {
	return func(c *Client) {
		c.sessionStore = s
	}
}

// WithLocalStore sets the store used by the local storage policy.
func WithLocalStore(s storage.Store) Option {
	return func(c *Client) {
		c.localStore = s
	}
}

func WithLocation(l Location) Option {
	return func(c *Client) {
		c.location = l
	}
}

func WithNavigator(n Navigator) Option {
	return func(c *Client) {
		c.navigator = n
	}
}

// WithHTTPClient replaces the outbound HTTP client.
func WithHTTPClient(d httpclient.Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithRandom replaces the CSPRNG used for state and code verifiers.
func WithRandom(r io.Reader) Option {
	return func(c *Client) {
		if r != nil {
			c.random = r
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithIDTokenVerifier verifies any id_token returned by the token endpoint.
func WithIDTokenVerifier(v *oidc.IDTokenVerifier) Option {
	return func(c *Client) {
		c.idTokenVerifier = v
	}
}
