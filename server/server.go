// Package server is an example application that mounts the cookie handlers on a chi
// router, adds the cross-origin session check and exposes Prometheus metrics.
package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-orbit-auth/handlers"
	"github.com/jrsteele09/go-orbit-auth/internal/config"
	"github.com/jrsteele09/go-orbit-auth/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env      string
	router   chi.Router
	routes   []string
	config   config.Config
	auth     *handlers.Handlers
	metrics  *metrics.Collector
	registry *prometheus.Registry
	logger   zerolog.Logger

	handlerOptions []handlers.Option
}

type Option func(*Server)

// WithLogger replaces the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithHandlerOptions is passed through to handlers.New after the options derived from
// the configuration.
func WithHandlerOptions(opts ...handlers.Option) Option {
	return func(s *Server) {
		s.handlerOptions = append(s.handlerOptions, opts...)
	}
}

func New(c config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		env:      c.GetEnv(),
		router:   chi.NewRouter(),
		config:   c,
		registry: prometheus.NewRegistry(),
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	collector, err := metrics.New(s.registry)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to register metrics: %w", err)
	}
	s.metrics = collector

	handlerOpts := []handlers.Option{
		handlers.WithLogger(s.logger),
		handlers.WithMetrics(collector),
		handlers.WithCallbackPath(c.GetCallbackPath()),
		handlers.WithCookieSecret(c.GetCookieSecret()),
	}
	if c.GetStrictState() {
		handlerOpts = append(handlerOpts, handlers.WithStrictState())
	}
	if c.GetRefreshCookies() {
		handlerOpts = append(handlerOpts, handlers.WithRefreshCookies())
	}
	s.auth, err = handlers.New(c.ClientConfig(), append(handlerOpts, s.handlerOptions...)...)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create auth handlers: %w", err)
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Registry is the Prometheus registry served on /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	s.logger.Info().Msgf("[%-19s] %s", color+paddedMethod+ResetColor, path)
}
