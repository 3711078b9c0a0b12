package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/pkg/browser"
)

// Location exposes the user agent's current URL. A client without a Location behaves
// like a host with no window: callbacks are ignored and sign-in needs a redirect URI.
type Location interface {
	URL() *url.URL
}

// Navigator moves the user agent. Navigate performs a full navigation; Replace rewrites
// the visible location without loading it.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
	Replace(ctx context.Context, target string) error
}

// BrowserNavigator opens authorization URLs in the system browser. It has no address
// bar of its own, so Replace does nothing.
type BrowserNavigator struct{}

func (BrowserNavigator) Navigate(_ context.Context, target string) error {
	if err := browser.OpenURL(target); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

func (BrowserNavigator) Replace(context.Context, string) error {
	return nil
}

// History is an in-memory Location and Navigator. It is what a server-side host or a
// CLI uses to feed a received callback URL into the client.
type History struct {
	mu      sync.RWMutex
	current *url.URL
	entries []string
}

var (
	_ Location  = (*History)(nil)
	_ Navigator = (*History)(nil)
)

// NewHistory starts a history at raw, which must be an absolute URL.
func NewHistory(raw string) (*History, error) {
	u, err := parseAbsolute(raw)
	if err != nil {
		return nil, err
	}
	return &History{current: u, entries: []string{u.String()}}, nil
}

// URL returns a copy of the current location.
func (h *History) URL() *url.URL {
	h.mu.RLock()
	defer h.mu.RUnlock()
	u := *h.current
	return &u
}

// Navigate pushes target, resolved against the current location.
func (h *History) Navigate(_ context.Context, target string) error {
	return h.set(target, false)
}

// Replace swaps the current entry for target, resolved against the current location.
func (h *History) Replace(_ context.Context, target string) error {
	return h.set(target, true)
}

// Entries returns the visited URLs, oldest first.
func (h *History) Entries() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.entries...)
}

func (h *History) set(target string, replace bool) error {
	ref, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid location %q: %w", target, err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = h.current.ResolveReference(ref)
	if replace {
		h.entries[len(h.entries)-1] = h.current.String()
	} else {
		h.entries = append(h.entries, h.current.String())
	}
	return nil
}

func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q: %w", raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("location %q is not absolute", raw)
	}
	return u, nil
}

func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

// relativeURL is the path, query and fragment of u, as a browser would report them.
func relativeURL(u *url.URL) string {
	rel := u.EscapedPath()
	if rel == "" {
		rel = "/"
	}
	if u.RawQuery != "" {
		rel += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		rel += "#" + u.EscapedFragment()
	}
	return rel
}
