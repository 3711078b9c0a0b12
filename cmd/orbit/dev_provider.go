package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-orbit-auth/internal/testprovider"
	"github.com/jrsteele09/go-orbit-auth/oauth2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type devProviderOptions struct {
	addr         string
	pathPrefix   string
	clientID     string
	clientSecret string
	redirectURIs []string
	user         testprovider.User
	tokenTTL     time.Duration
}

func newDevProviderCmd() *cobra.Command {
	o := &devProviderOptions{}
	cmd := &cobra.Command{
		Use:   "dev-provider",
		Short: "Run a local identity provider that signs every request in as one user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			handler, err := o.handler()
			if err != nil {
				return err
			}
			displayAppname("Orbit Dev")
			log.Info().
				Str("client_id", o.clientID).
				Str("user", o.user.Email).
				Msg("development provider ready")
			return run(cmd.Context(), &http.Server{Addr: o.addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&o.addr, "addr", ":5000", "Listen address")
	flags.StringVar(&o.pathPrefix, "path-prefix", oauth2.DefaultPathPrefix, "Prefix of the OAuth endpoints")
	flags.StringVar(&o.clientID, "client-id", "orbit-dev-client", "Client id to register")
	flags.StringVar(&o.clientSecret, "client-secret", "", "Client secret; empty registers a public client")
	flags.StringSliceVar(&o.redirectURIs, "redirect-uri", nil, "Allowed redirect URIs; none allows any")
	flags.StringVar(&o.user.Sub, "user-id", "dev-user", "Subject of the signed-in user")
	flags.StringVar(&o.user.Email, "user-email", "dev@orbit.localhost", "Email of the signed-in user")
	flags.StringVar(&o.user.Name, "user-name", "Dev User", "Name of the signed-in user")
	flags.DurationVar(&o.tokenTTL, "token-ttl", time.Hour, "Access token lifetime")
	return cmd
}

func (o *devProviderOptions) handler() (http.Handler, error) {
	p, err := testprovider.New(testprovider.WithAccessTokenTTL(o.tokenTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	if err := p.RegisterClient(o.clientID, o.clientSecret, o.redirectURIs...); err != nil {
		return nil, fmt.Errorf("failed to register client: %w", err)
	}
	o.user.EmailVerified = true
	p.AddUser(o.user)
	return p.Handler(o.pathPrefix), nil
}
