package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jrsteele09/go-orbit-auth/metrics"
	"github.com/jrsteele09/go-orbit-auth/oauth2"
	"github.com/jrsteele09/go-orbit-auth/session"
	"github.com/jrsteele09/go-orbit-auth/storage"
)

// storedTokens is what survives between runs. Expiry is zero when none was stored.
type storedTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

func (c *Client) storeSession(ctx context.Context, accessToken, refreshToken string, expiresAt time.Time) error {
	s := c.store()
	if s == nil {
		return nil
	}
	if expiresAt.IsZero() {
		expiresAt = c.now().Add(session.DefaultLifetime)
	}
	if err := s.Set(ctx, oauth2.StorageKeyAccessToken, accessToken); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if err := s.Set(ctx, oauth2.StorageKeyAccessTokenExpires, strconv.FormatInt(expiresAt.UnixMilli(), 10)); err != nil {
		return fmt.Errorf("failed to store token expiry: %w", err)
	}
	if refreshToken != "" {
		if err := s.Set(ctx, oauth2.StorageKeyRefreshToken, refreshToken); err != nil {
			return fmt.Errorf("failed to store refresh token: %w", err)
		}
	}
	return nil
}

func (c *Client) loadTokens(ctx context.Context, s storage.Store) (storedTokens, error) {
	var t storedTokens
	var err error
	if t.AccessToken, _, err = s.Get(ctx, oauth2.StorageKeyAccessToken); err != nil {
		return t, err
	}
	if t.RefreshToken, _, err = s.Get(ctx, oauth2.StorageKeyRefreshToken); err != nil {
		return t, err
	}
	raw, found, err := s.Get(ctx, oauth2.StorageKeyAccessTokenExpires)
	if err != nil {
		return t, err
	}
	if found {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			t.ExpiresAt = time.UnixMilli(ms)
		} else {
			c.logger.Debug().Str("value", raw).Msg("ignoring unparsable stored token expiry")
		}
	}
	return t, nil
}

// GetStoredSession restores the session persisted by a previous callback. It never
// fails: a missing, expired or rejected session yields nil. An expired access token is
// refreshed when a refresh token is stored; if that fails the stored session is cleared.
func (c *Client) GetStoredSession(ctx context.Context) *session.Session {
	s := c.store()
	if s == nil {
		return nil
	}

	stored, err := c.loadTokens(ctx, s)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to read stored session")
		return nil
	}
	if stored.AccessToken == "" {
		return nil
	}

	expiresAt := stored.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = c.now().Add(session.DefaultLifetime)
	}

	if c.now().After(expiresAt) {
		if stored.RefreshToken == "" {
			c.clearQuietly(ctx, "access token expired without a refresh token")
			c.metrics.ObserveOutcome(metrics.OpRestore, metrics.OutcomeNone)
			return nil
		}
		sess, err := c.refreshSession(ctx, stored.RefreshToken)
		if err != nil {
			c.logger.Debug().Err(err).Msg("stored session refresh failed")
			c.clearQuietly(ctx, "refresh failed")
			c.metrics.Observe(metrics.OpRestore, err)
			return nil
		}
		c.metrics.Observe(metrics.OpRestore, nil)
		return sess
	}

	sess, err := c.GetSession(ctx, stored.AccessToken, &expiresAt, stored.RefreshToken)
	if err != nil {
		c.logger.Debug().Err(err).Msg("stored session rejected")
		c.metrics.Observe(metrics.OpRestore, err)
		return nil
	}
	c.metrics.Observe(metrics.OpRestore, nil)
	return sess
}

func (c *Client) refreshSession(ctx context.Context, refreshToken string) (*session.Session, error) {
	tokens, err := c.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	expiresAt := tokens.AccessTokenExpiresAt
	sess, err := c.GetSession(ctx, tokens.AccessToken, &expiresAt, tokens.RefreshToken)
	if err != nil {
		return nil, err
	}
	if err := c.storeSession(ctx, tokens.AccessToken, tokens.RefreshToken, tokens.AccessTokenExpiresAt); err != nil {
		return nil, err
	}
	return sess, nil
}

// ClearSession removes the stored tokens. The pending authorization is left alone.
func (c *Client) ClearSession(ctx context.Context) error {
	s := c.store()
	if s == nil {
		return nil
	}
	if err := storage.RemoveAll(ctx, s, oauth2.SessionKeys...); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (c *Client) clearQuietly(ctx context.Context, reason string) {
	if err := c.ClearSession(ctx); err != nil {
		c.logger.Warn().Err(err).Str("reason", reason).Msg("failed to clear stored session")
	}
}

// SignOut revokes the stored access token, ignoring any provider failure, and clears the
// stored session. Only a local storage failure is returned.
func (c *Client) SignOut(ctx context.Context) error {
	if s := c.store(); s != nil {
		accessToken, _, err := s.Get(ctx, oauth2.StorageKeyAccessToken)
		if err != nil {
			c.logger.Warn().Err(err).Msg("failed to read access token for revocation")
		}
		if accessToken != "" {
			if err := c.revoke(ctx, accessToken); err != nil {
				c.logger.Debug().Err(err).Msg("token revocation failed")
			}
		}
	}
	return c.ClearSession(ctx)
}

// Bootstrap resolves the session on start-up: a URL carrying a callback is handled,
// otherwise the stored session is restored.
func (c *Client) Bootstrap(ctx context.Context) (*session.Session, error) {
	if c.location != nil {
		query := c.location.URL().Query()
		if query.Get(oauth2.ParamCode) != "" || query.Get(oauth2.ParamError) != "" {
			return c.HandleCallback(ctx)
		}
	}
	return c.GetStoredSession(ctx), nil
}
