// Package handlers is the cookie-based, server-side counterpart of the client package.
// It keeps no state between requests: the pending authorization and the tokens live in
// HttpOnly cookies, and failures turn into redirects or JSON bodies rather than errors.
package handlers

import (
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"

	"github.com/jrsteele09/go-orbit-auth/client"
	"github.com/jrsteele09/go-orbit-auth/httpclient"
	"github.com/jrsteele09/go-orbit-auth/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultCallbackPath is where the provider sends the browser back to.
	DefaultCallbackPath = "/api/auth/callback"

	contentTypeJSON = "application/json"
)

// Handlers serves sign-in, callback, sign-out, session and refresh for one client.
type Handlers struct {
	config client.Config

	http           httpclient.Doer
	callbackPath   string
	strictState    bool
	refreshCookies bool
	signer         *cookieSigner
	random         io.Reader
	logger         zerolog.Logger
	metrics        *metrics.Collector
}

// Option configures Handlers.
type Option func(*Handlers)

func WithHTTPClient(d httpclient.Doer) Option {
	return func(h *Handlers) {
		if d != nil {
			h.http = d
		}
	}
}

// WithCallbackPath changes the path the Callback handler is mounted at, which is also
// sent as the redirect_uri path.
func WithCallbackPath(path string) Option {
	return func(h *Handlers) {
		if path != "" {
			h.callbackPath = path
		}
	}
}

// WithStrictState treats a callback without a state cookie as a CSRF failure. By default
// the state check only runs when the cookie is present.
func WithStrictState() Option {
	return func(h *Handlers) {
		h.strictState = true
	}
}

// WithRefreshCookies makes the Refresh handler set the refreshed token cookies. By
// default it only reports success.
func WithRefreshCookies() Option {
	return func(h *Handlers) {
		h.refreshCookies = true
	}
}

// WithCookieSecret signs cookie values with HMAC-SHA256. Cookies with a missing or
// wrong signature are treated as absent.
func WithCookieSecret(secret []byte) Option {
	return func(h *Handlers) {
		if len(secret) > 0 {
			h.signer = &cookieSigner{key: append([]byte(nil), secret...)}
		}
	}
}

func WithRandom(r io.Reader) Option {
	return func(h *Handlers) {
		if r != nil {
			h.random = r
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(h *Handlers) {
		h.logger = l
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(h *Handlers) {
		h.metrics = m
	}
}

// New validates config and creates the handlers.
func New(config client.Config, opts ...Option) (*Handlers, error) {
	cfg, err := config.Normalize()
	if err != nil {
		return nil, err
	}
	h := &Handlers{
		config:       cfg,
		http:         httpclient.Default(),
		callbackPath: DefaultCallbackPath,
		random:       rand.Reader,
		logger:       log.Logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// CallbackPath is the path the Callback handler expects to be mounted at.
func (h *Handlers) CallbackPath() string {
	return h.callbackPath
}

func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
