package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	s.router.Use(s.RequestIDMiddleware)
	s.router.Use(s.LoggingMiddleware)
	s.router.Use(s.RecoverMiddleware)
	s.router.Use(s.metrics.Middleware(routePattern))

	s.router.Group(func(r chi.Router) {
		r.Use(FrameSecurityMiddleware)
		s.get(r, RouteIndex, s.IndexHandler())
		s.get(r, RouteSignIn, s.auth.SignIn())
		s.get(r, s.auth.CallbackPath(), s.auth.Callback())
		s.get(r, RouteSignOut, s.auth.SignOut())
		s.post(r, RouteSignOut, s.auth.SignOut())
		s.get(r, RouteSession, s.auth.Session())
		s.post(r, RouteRefresh, s.auth.Refresh())
	})

	s.router.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowOriginFunc:    func(_ *http.Request, origin string) bool { return s.config.IsAllowedOrigin(origin) },
			AllowedMethods:     s.config.GetAllowedMethods(),
			AllowedHeaders:     s.config.GetAllowedHeaders(),
			AllowCredentials:   true,
			MaxAge:             86400,
			OptionsPassthrough: true, // answered by the OPTIONS route below
		}))
		s.get(r, RouteSessionCheck, s.SessionCheckHandler())
		s.options(r, RouteSessionCheck, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	s.get(s.router, RouteHealth, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.get(s.router, RouteMetrics, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP)
}

func (s *Server) get(r chi.Router, pattern string, h http.HandlerFunc) {
	s.routes = append(s.routes, http.MethodGet+" "+pattern)
	r.Get(pattern, h)
}

func (s *Server) post(r chi.Router, pattern string, h http.HandlerFunc) {
	s.routes = append(s.routes, http.MethodPost+" "+pattern)
	r.Post(pattern, h)
}

func (s *Server) options(r chi.Router, pattern string, h http.HandlerFunc) {
	s.routes = append(s.routes, http.MethodOptions+" "+pattern)
	r.Options(pattern, h)
}

// routePattern labels metrics by the matched route so ids in paths do not explode the
// series count.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
