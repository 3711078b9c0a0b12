package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/jrsteele09/go-orbit-auth/autherrors"
	"github.com/jrsteele09/go-orbit-auth/client"
	"github.com/jrsteele09/go-orbit-auth/internal/config"
	"github.com/jrsteele09/go-orbit-auth/internal/loopback"
	"github.com/jrsteele09/go-orbit-auth/session"
	"github.com/jrsteele09/go-orbit-auth/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	storeKeyring = "keyring"
	storeRedis   = "redis"
	storeMemory  = "memory"

	redisKeyPrefix = "orbit-cli"
)

var errNotSignedIn = errors.New("not signed in, run orbit login")

// sessionOptions select where the CLI keeps its tokens between runs.
type sessionOptions struct {
	store          string
	redisURL       string
	keyringService string

	memory *storage.InMemoryStore
}

func addSessionFlags(cmd *cobra.Command, so *sessionOptions) {
	flags := cmd.Flags()
	flags.StringVar(&so.store, "store", storeKeyring, "Token store: keyring, redis or memory")
	flags.StringVar(&so.redisURL, "redis-url", "", "redis:// URL when --store=redis (env REDIS_URL)")
	flags.StringVar(&so.keyringService, "keyring-service", "orbit-auth", "Keyring service name when --store=keyring")
}

func (so *sessionOptions) openStore() (storage.Store, func(), error) {
	switch so.store {
	case storeKeyring, "":
		return storage.NewKeyringStore(so.keyringService), func() {}, nil
	case storeRedis:
		redisURL := so.redisURL
		if redisURL == "" {
			redisURL = config.New().GetRedisURL()
		}
		if redisURL == "" {
			return nil, nil, errors.New("--redis-url or REDIS_URL is required with --store=redis")
		}
		s, err := storage.NewRedisStoreFromURL(redisURL, redisKeyPrefix, 0)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case storeMemory:
		if so.memory == nil {
			so.memory = storage.NewInMemoryStore(0)
		}
		return so.memory, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", so.store)
	}
}

// newClient builds a client that keeps everything in the selected store.
func newClient(g *globalOptions, so *sessionOptions, opts ...client.Option) (*client.Client, func(), error) {
	store, closeStore, err := so.openStore()
	if err != nil {
		return nil, nil, err
	}
	cfg := g.clientConfig()
	cfg.Storage = client.LocalStorage
	c, err := client.New(cfg, append([]client.Option{
		client.WithSessionStore(nil),
		client.WithLocalStore(store),
		client.WithLogger(log.Logger),
	}, opts...)...)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return c, closeStore, nil
}

type loginOptions struct {
	port          int
	noBrowser     bool
	timeout       time.Duration
	verifyIDToken bool
	navigator     client.Navigator
}

func newLoginCmd(g *globalOptions) *cobra.Command {
	so := &sessionOptions{}
	lo := &loginOptions{navigator: client.BrowserNavigator{}}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser and store the tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd.Context(), g, so, lo, cmd.OutOrStdout())
		},
	}
	addSessionFlags(cmd, so)
	cmd.Flags().IntVar(&lo.port, "port", 0, "Loopback callback port; 0 picks a free one")
	cmd.Flags().BoolVar(&lo.noBrowser, "no-browser", false, "Print the sign-in URL instead of opening a browser")
	cmd.Flags().DurationVar(&lo.timeout, "timeout", 5*time.Minute, "How long to wait for the browser")
	cmd.Flags().BoolVar(&lo.verifyIDToken, "verify-id-token", false, "Verify the id_token against the provider JWKS")
	return cmd
}

func runLogin(ctx context.Context, g *globalOptions, so *sessionOptions, lo *loginOptions, out io.Writer) error {
	var opts []client.Option
	if lo.verifyIDToken {
		cfg, err := g.clientConfig().Normalize()
		if err != nil {
			return err
		}
		verifier, err := client.NewRemoteIDTokenVerifier(ctx, cfg)
		if err != nil {
			return err
		}
		opts = append(opts, client.WithIDTokenVerifier(verifier))
	}
	if !lo.noBrowser {
		opts = append(opts, client.WithNavigator(lo.navigator))
	}
	c, closeClient, err := newClient(g, so, opts...)
	if err != nil {
		return err
	}
	defer closeClient()

	var signedIn *session.Session
	srv, err := loopback.Listen(lo.port, func(ctx context.Context, callback *url.URL) error {
		sess, err := c.HandleCallbackURL(ctx, callback)
		if err != nil {
			return err
		}
		if sess == nil {
			return loopback.ErrNoAuthorizationResponse
		}
		signedIn = sess
		return nil
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close callback listener")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, lo.timeout)
	defer cancel()

	result, err := c.SignIn(ctx, client.SignInOptions{RedirectURI: srv.RedirectURI(), DisableRedirect: lo.noBrowser})
	switch {
	case autherrors.IsKind(err, autherrors.AuthorizationFailed) && result.RedirectURL != "":
		log.Warn().Err(err).Msg("failed to open browser")
		fmt.Fprintf(out, "Open this URL to sign in:\n%s\n", result.RedirectURL)
	case err != nil:
		return err
	case result.RedirectURL != "":
		fmt.Fprintf(out, "Open this URL to sign in:\n%s\n", result.RedirectURL)
	}

	if err := srv.Wait(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Signed in as %s <%s>\n", signedIn.User.Name, signedIn.User.Email)
	return nil
}

func newWhoamiCmd(g *globalOptions) *cobra.Command {
	so := &sessionOptions{}
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user, refreshing the session if needed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWhoami(cmd.Context(), g, so, cmd.OutOrStdout())
		},
	}
	addSessionFlags(cmd, so)
	return cmd
}

func runWhoami(ctx context.Context, g *globalOptions, so *sessionOptions, out io.Writer) error {
	c, closeClient, err := newClient(g, so)
	if err != nil {
		return err
	}
	defer closeClient()

	sess := c.GetStoredSession(ctx)
	if sess == nil {
		return errNotSignedIn
	}
	b, err := json.MarshalIndent(struct {
		session.User
		ExpiresAt time.Time `json:"expiresAt"`
	}{sess.User, sess.ExpiresAt}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(b))
	return nil
}

func newTokenCmd(g *globalOptions) *cobra.Command {
	so := &sessionOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token for use in scripts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runToken(cmd.Context(), g, so, cmd.OutOrStdout())
		},
	}
	addSessionFlags(cmd, so)
	return cmd
}

func runToken(ctx context.Context, g *globalOptions, so *sessionOptions, out io.Writer) error {
	c, closeClient, err := newClient(g, so)
	if err != nil {
		return err
	}
	defer closeClient()

	tok, err := c.TokenSource(ctx).Token()
	if err != nil {
		if autherrors.IsKind(err, autherrors.SessionNotFound) {
			return errNotSignedIn
		}
		return err
	}
	fmt.Fprintln(out, tok.AccessToken)
	return nil
}

func newLogoutCmd(g *globalOptions) *cobra.Command {
	so := &sessionOptions{}
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored token and forget the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogout(cmd.Context(), g, so, cmd.OutOrStdout())
		},
	}
	addSessionFlags(cmd, so)
	return cmd
}

func runLogout(ctx context.Context, g *globalOptions, so *sessionOptions, out io.Writer) error {
	c, closeClient, err := newClient(g, so)
	if err != nil {
		return err
	}
	defer closeClient()

	if err := c.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Signed out")
	return nil
}
