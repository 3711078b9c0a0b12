package config

import (
	"net/url"
	"strings"
)

const trustedOriginsVar = "TRUSTED_ORIGINS"

type Cors struct{}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

// GetAllowedOrigins is the provider base URL plus TRUSTED_ORIGINS.
func (Cors) GetAllowedOrigins() AllowedOrigins {
	origins := AllowedOrigins{OAuth{}.GetAuthURL(): nullValue{}}
	for _, o := range GetEnvList(trustedOriginsVar) {
		origins[strings.TrimSuffix(o, "/")] = nullValue{}
	}
	return origins
}

// IsAllowedOrigin accepts any loopback or *.localhost origin and the configured
// allow-list.
func (c Cors) IsAllowedOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	return c.GetAllowedOrigins().IsAllowedOrigin(origin)
}

func (Cors) GetAllowedMethods() []string {
	return []string{"GET", "OPTIONS"}
}

func (Cors) GetAllowedHeaders() []string {
	return []string{"Content-Type", "Authorization"}
}
