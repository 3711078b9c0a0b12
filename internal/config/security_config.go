package config

import "github.com/jrsteele09/go-orbit-auth/handlers"

const (
	cookieSecretVar   = "COOKIE_SECRET"
	strictStateVar    = "ORBIT_STRICT_STATE"
	refreshCookiesVar = "ORBIT_REFRESH_COOKIES"
	callbackPathVar   = "ORBIT_CALLBACK_PATH"
)

type SecurityConfig interface {
	GetCookieSecret() []byte
	GetStrictState() bool
	GetRefreshCookies() bool
	GetCallbackPath() string
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetCookieSecret returns nil when cookies should not be signed.
func (Security) GetCookieSecret() []byte {
	if secret := GetEnv(cookieSecretVar, ""); secret != "" {
		return []byte(secret)
	}
	return nil
}

func (Security) GetStrictState() bool {
	return GetEnvBool(strictStateVar, false)
}

func (Security) GetRefreshCookies() bool {
	return GetEnvBool(refreshCookiesVar, false)
}

func (Security) GetCallbackPath() string {
	return GetEnv(callbackPathVar, handlers.DefaultCallbackPath)
}
