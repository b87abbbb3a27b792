package token

import (
	"context"
	"fmt"
	"time"

	"kiteclient/cache"
	"kiteclient/logger"
	"kiteclient/session"
)

// TokenManager defines the interface for managing broker tokens
type TokenManager interface {
	GetValidToken(ctx context.Context) (string, error)
	StoreToken(ctx context.Context, token string) error
	RefreshToken(ctx context.Context) (string, error)
	IsTokenValid(ctx context.Context) bool
}

// Store persists tokens across runs.
type Store interface {
	StoreAccessToken(token string, expiresAt time.Time) error
	GetActiveToken() (string, error)
}

// Cache holds tokens until the broker's daily expiry.
type Cache interface {
	StoreAccessToken(ctx context.Context, token string) error
	GetValidToken(ctx context.Context) string
}

// Manager resolves a valid access token: store first, then the cache, then a
// fresh login handshake. New tokens are written back to both.
type Manager struct {
	gen   *session.Generator
	user  session.User
	store Store
	cache Cache // optional
	log   *logger.Logger
}

// NewManager wires a token manager. The cache may be nil.
func NewManager(gen *session.Generator, user session.User, store Store, tokenCache Cache) *Manager {
	return &Manager{
		gen:   gen,
		user:  user,
		store: store,
		cache: tokenCache,
		log:   logger.GetLogger(),
	}
}

// GetValidToken returns a working access token, logging in only when neither
// the store nor the cache has one.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	if token, err := m.store.GetActiveToken(); err == nil && token != "" {
		m.log.Info("Found valid token in store", map[string]interface{}{
			"token_length": len(token),
		})
		return token, nil
	}

	if m.cache != nil {
		if token := m.cache.GetValidToken(ctx); token != "" {
			m.log.Info("Found valid token in cache", map[string]interface{}{
				"token_length": len(token),
			})
			// Backfill the store so the next run skips the cache
			if err := m.StoreToken(ctx, token); err != nil {
				m.log.Error("Failed to backfill token store", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return token, nil
		}
	}

	m.log.Info("No valid token found, refreshing access token", nil)
	return m.RefreshToken(ctx)
}

// RefreshToken forces a fresh login handshake and stores the new token.
// Only the API flow yields an access token; an OMS-only login (no API key)
// cannot satisfy a token request.
func (m *Manager) RefreshToken(ctx context.Context) (string, error) {
	sess, err := m.gen.GenerateSession(ctx, m.user)
	if err != nil {
		return "", err
	}
	if sess.AccessToken == "" {
		return "", fmt.Errorf("login produced no access token: an API key and secret are required")
	}

	if err := m.StoreToken(ctx, sess.AccessToken); err != nil {
		m.log.Error("Failed to store refreshed token", map[string]interface{}{
			"error": err.Error(),
		})
		// Token is still usable even if persistence failed
	}

	return sess.AccessToken, nil
}

// StoreToken persists the token in the store and, when available, the cache.
func (m *Manager) StoreToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("refusing to store an empty access token")
	}

	if err := m.store.StoreAccessToken(token, cache.NextTokenExpiry(time.Now())); err != nil {
		return err
	}

	if m.cache != nil {
		if err := m.cache.StoreAccessToken(ctx, token); err != nil {
			m.log.Error("Failed to cache token", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return nil
}

// IsTokenValid checks the stored token against the profile endpoint.
func (m *Manager) IsTokenValid(ctx context.Context) bool {
	token, err := m.store.GetActiveToken()
	if err != nil || token == "" {
		return false
	}
	return m.gen.IsAPISessionValid(ctx, m.user.APIKey, token)
}
