package handlers

import (
	"net/http"
	"net/url"
)

func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}

func requestOrigin(r *http.Request) string {
	return getScheme(r) + "://" + r.Host
}

// resolve returns ref as an absolute URL relative to the request URL. An unparsable ref
// resolves to the site root.
func resolve(r *http.Request, ref string) *url.URL {
	base := &url.URL{Scheme: getScheme(r), Host: r.Host, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
	u, err := url.Parse(ref)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	return base.ResolveReference(u)
}
