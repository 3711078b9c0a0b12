package config

import (
	"github.com/jrsteele09/go-orbit-auth/client"
	"github.com/jrsteele09/go-orbit-auth/oauth2"
)

const (
	authURLVar      = "ORBIT_AUTH_URL"
	clientIDVar     = "ORBIT_CLIENT_ID"
	clientSecretVar = "ORBIT_CLIENT_SECRET"
	scopesVar       = "ORBIT_SCOPES"
	redirectURIVar  = "ORBIT_REDIRECT_URI"
	pathPrefixVar   = "ORBIT_PATH_PREFIX"
	storageVar      = "ORBIT_STORAGE"
)

type OAuthConfig interface {
	GetAuthURL() string
	GetClientID() string
	GetClientSecret() string
	GetScopes() []string
	GetRedirectURI() string
	GetPathPrefix() string
	GetStorage() client.StoragePolicy
	ClientConfig() client.Config
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

// GetAuthURL returns the Orbit provider origin.
func (OAuth) GetAuthURL() string {
	return GetEnv(authURLVar, "http://localhost:5000")
}

func (OAuth) GetClientID() string {
	return GetEnv(clientIDVar, "")
}

func (OAuth) GetClientSecret() string {
	return GetEnv(clientSecretVar, "")
}

// GetScopes returns ORBIT_SCOPES, or nil so the client falls back to its defaults.
func (OAuth) GetScopes() []string {
	return GetEnvList(scopesVar)
}

func (OAuth) GetRedirectURI() string {
	return GetEnv(redirectURIVar, "")
}

func (OAuth) GetPathPrefix() string {
	return GetEnv(pathPrefixVar, oauth2.DefaultPathPrefix)
}

func (OAuth) GetStorage() client.StoragePolicy {
	return client.StoragePolicy(GetEnv(storageVar, string(client.SessionStorage)))
}

// ClientConfig assembles the client configuration. It is validated by the client and
// handler constructors, not here.
func (o OAuth) ClientConfig() client.Config {
	return client.Config{
		BaseURL:      o.GetAuthURL(),
		ClientID:     o.GetClientID(),
		ClientSecret: o.GetClientSecret(),
		Scopes:       o.GetScopes(),
		RedirectURI:  o.GetRedirectURI(),
		Storage:      o.GetStorage(),
		PathPrefix:   o.GetPathPrefix(),
	}
}
