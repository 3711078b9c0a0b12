package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-orbit-auth/client"
	"github.com/jrsteele09/go-orbit-auth/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalOptions override the environment for every command.
type globalOptions struct {
	envFile      string
	logLevel     string
	authURL      string
	clientID     string
	clientSecret string
	scopes       string
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:          "orbit",
		Short:        "Orbit Auth client, example server and development provider",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := config.Load(g.envFile); err != nil {
				return err
			}
			return setupLogging(g.logLevel)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.envFile, "env-file", ".env", "Environment file loaded before reading configuration")
	flags.StringVar(&g.logLevel, "log-level", "", "Log level (env LOG_LEVEL)")
	flags.StringVar(&g.authURL, "auth-url", "", "Orbit provider base URL (env ORBIT_AUTH_URL)")
	flags.StringVar(&g.clientID, "client-id", "", "OAuth client id (env ORBIT_CLIENT_ID)")
	flags.StringVar(&g.clientSecret, "client-secret", "", "OAuth client secret for confidential clients (env ORBIT_CLIENT_SECRET)")
	flags.StringVar(&g.scopes, "scopes", "", "Space separated scopes (env ORBIT_SCOPES)")

	root.AddCommand(
		newServeCmd(g),
		newDevProviderCmd(),
		newLoginCmd(g),
		newWhoamiCmd(g),
		newTokenCmd(g),
		newLogoutCmd(g),
	)
	return root
}

// clientConfig is the environment configuration with any flags applied on top.
func (g *globalOptions) clientConfig() client.Config {
	cfg := config.New().ClientConfig()
	if g.authURL != "" {
		cfg.BaseURL = g.authURL
	}
	if g.clientID != "" {
		cfg.ClientID = g.clientID
	}
	if g.clientSecret != "" {
		cfg.ClientSecret = g.clientSecret
	}
	if g.scopes != "" {
		cfg.Scopes = strings.Fields(g.scopes)
	}
	return cfg
}

func setupLogging(level string) error {
	if level == "" {
		level = config.New().GetLogLevel()
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
