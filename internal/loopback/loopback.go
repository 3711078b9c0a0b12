// Package loopback receives an authorization response on a local HTTP listener, for
// command line sign-in.
package loopback

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CallbackPath is the path of the redirect URI served by the listener.
const CallbackPath = "/callback"

// ErrNoAuthorizationResponse is returned by a Handler that found neither a code nor an
// error in the callback.
var ErrNoAuthorizationResponse = errors.New("callback carried no authorization response")

// Handler completes the flow for a received callback URL. Its error is shown in the
// browser and returned from Wait.
type Handler func(ctx context.Context, callback *url.URL) error

type Server struct {
	listener net.Listener
	server   *http.Server
	handle   Handler
	done     chan error
	logger   zerolog.Logger
}

// Listen starts serving on 127.0.0.1:port. Port 0 picks a free port.
func Listen(port int, handle Handler) (*Server, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}
	s := &Server{
		listener: listener,
		handle:   handle,
		done:     make(chan error, 1),
		logger:   log.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+CallbackPath, s.handleCallback)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		writePage(w, http.StatusOK, "Waiting for sign-in", "Complete the sign-in in this browser.")
	})
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.finish(fmt.Errorf("callback listener failed: %w", err))
		}
	}()
	return s, nil
}

// RedirectURI is the URI to register with the provider and send at sign-in.
func (s *Server) RedirectURI() string {
	return "http://" + s.listener.Addr().String() + CallbackPath
}

// Wait blocks until a callback has been handled or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	select {
	case err := <-s.done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("sign-in cancelled: %w", ctx.Err())
	}
}

// Close stops the listener, waiting briefly for the result page to be written.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down callback listener: %w", err)
	}
	return nil
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	callback := &url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
	err := s.handle(r.Context(), callback)
	if err != nil {
		s.logger.Debug().Err(err).Msg("sign-in callback failed")
		writePage(w, http.StatusBadRequest, "Sign-in failed", err.Error())
	} else {
		writePage(w, http.StatusOK, "Signed in", "You can close this window and return to the terminal.")
	}
	s.finish(err)
}

// finish records the first result; later callbacks are answered but ignored.
func (s *Server) finish(err error) {
	select {
	case s.done <- err:
	default:
	}
}

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html><head><title>{{.Title}}</title></head>
<body><h1>{{.Title}}</h1><p>{{.Message}}</p></body></html>
`))

func writePage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.WriteHeader(status)
	_ = page.Execute(w, struct{ Title, Message string }{title, message})
}
