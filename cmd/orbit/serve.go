package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrsteele09/go-orbit-auth/internal/config"
	"github.com/jrsteele09/go-orbit-auth/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the example application with the cookie handlers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Flags win over the environment.
			if g.authURL != "" {
				_ = os.Setenv("ORBIT_AUTH_URL", g.authURL)
			}
			if g.clientID != "" {
				_ = os.Setenv("ORBIT_CLIENT_ID", g.clientID)
			}
			if g.clientSecret != "" {
				_ = os.Setenv("ORBIT_CLIENT_SECRET", g.clientSecret)
			}
			if g.scopes != "" {
				_ = os.Setenv("ORBIT_SCOPES", g.scopes)
			}
			if port != "" {
				_ = os.Setenv("PORT", port)
			}

			c := config.New()
			displayAppname(c.GetAppName())
			s, err := server.New(c)
			if err != nil {
				return err
			}
			return run(cmd.Context(), &http.Server{Addr: c.GetPort(), Handler: s, ReadHeaderTimeout: 10 * time.Second})
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (env PORT)")
	return cmd
}

// run serves until SIGINT or SIGTERM and then shuts down gracefully.
func run(ctx context.Context, srv *http.Server) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		errs <- listenAndServe(srv)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	if err := shutdown(srv); err != nil {
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}

func listenAndServe(srv *http.Server) error {
	log.Info().Msgf("Server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
