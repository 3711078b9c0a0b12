package client

import (
	"strings"

	"github.com/jrsteele09/go-orbit-auth/autherrors"
	"github.com/jrsteele09/go-orbit-auth/oauth2"
)

// StoragePolicy selects which store holds the pending authorization and tokens.
type StoragePolicy string

const (
	// SessionStorage keeps state for the lifetime of the user agent (the default).
	SessionStorage StoragePolicy = "session"
	// LocalStorage keeps state across restarts.
	LocalStorage StoragePolicy = "local"
)

// Config describes one OAuth client registered with the Orbit provider.
type Config struct {
	// BaseURL is the provider origin, e.g. https://auth.example.com.
	BaseURL      string
	ClientID     string
	ClientSecret string // only for confidential clients
	Scopes       []string
	RedirectURI  string
	Storage      StoragePolicy
	// PathPrefix is prepended to the endpoint paths. Defaults to /oauth2.
	PathPrefix string
}

// Normalize validates c and fills in defaults. BaseURL loses any trailing slash.
func (c Config) Normalize() (Config, error) {
	c.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return c, autherrors.New(autherrors.InvalidConfiguration, "baseURL is required")
	}
	if c.ClientID == "" {
		return c, autherrors.New(autherrors.InvalidConfiguration, "clientId is required")
	}
	switch c.Storage {
	case "":
		c.Storage = SessionStorage
	case SessionStorage, LocalStorage:
	default:
		return c, autherrors.New(autherrors.InvalidConfiguration, "unknown storage policy "+string(c.Storage))
	}
	if c.PathPrefix == "" {
		c.PathPrefix = oauth2.DefaultPathPrefix
	}
	c.PathPrefix = "/" + strings.Trim(c.PathPrefix, "/")
	if c.PathPrefix == "/" {
		c.PathPrefix = ""
	}
	c.Scopes = append([]string(nil), c.Scopes...)
	return c, nil
}

// Endpoint returns the absolute URL of an endpoint path such as oauth2.TokenPath.
func (c Config) Endpoint(path string) string {
	return c.BaseURL + c.PathPrefix + path
}

// Confidential reports whether the client authenticates with a secret.
func (c Config) Confidential() bool {
	return c.ClientSecret != ""
}
