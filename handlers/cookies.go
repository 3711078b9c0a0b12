package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

// setCookie writes an HttpOnly, SameSite=Lax cookie for the whole site that lives for
// maxAge seconds. A maxAge of zero or less is sent as Max-Age=0.
func (h *Handlers) setCookie(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    h.signer.sign(name, value),
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func maxAgeOf(d time.Duration) int {
	return int(d / time.Second)
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// readCookie returns the verified cookie value, or "" when it is missing or tampered with.
func (h *Handlers) readCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	value, ok := h.signer.verify(name, c.Value)
	if !ok {
		h.logger.Warn().Str("cookie", name).Msg("discarding cookie with invalid signature")
		return ""
	}
	return value
}

// cookieSigner appends an HMAC of the cookie name and value. A nil signer passes values
// through unchanged.
type cookieSigner struct {
	key []byte
}

func (s *cookieSigner) mac(name, value string) string {
	m := hmac.New(sha256.New, s.key)
	m.Write([]byte(name))
	m.Write([]byte{'='})
	m.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}

func (s *cookieSigner) sign(name, value string) string {
	if s == nil {
		return value
	}
	return value + "." + s.mac(name, value)
}

func (s *cookieSigner) verify(name, signed string) (string, bool) {
	if s == nil {
		return signed, true
	}
	i := strings.LastIndexByte(signed, '.')
	if i < 0 {
		return "", false
	}
	value, sig := signed[:i], signed[i+1:]
	if !hmac.Equal([]byte(sig), []byte(s.mac(name, value))) {
		return "", false
	}
	return value, true
}
