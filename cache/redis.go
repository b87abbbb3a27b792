package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"kiteclient/config"
	"kiteclient/logger"
)

// TokenData represents token information stored in Redis
type TokenData struct {
	AccessToken string `json:"access_token"`
	CreatedAt   int64  `json:"created_at"` // Unix milliseconds
	ExpiresAt   int64  `json:"expires_at"` // Unix milliseconds
	IsValid     bool   `json:"is_valid"`
}

const tokenKey = "kite:access_token"

var (
	redisInstance *RedisCache
	redisOnce     sync.Once
)

type RedisCache struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCache creates or returns the existing Redis cache instance.
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	var initErr error
	redisOnce.Do(func() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			initErr = fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
			return
		}

		redisInstance = &RedisCache{
			client: client,
			log:    logger.GetLogger(),
		}
	})

	if initErr != nil {
		return nil, initErr
	}
	if redisInstance == nil {
		return nil, fmt.Errorf("redis cache initialization previously failed")
	}
	return redisInstance, nil
}

// StoreAccessToken caches the token until the broker's daily expiry.
func (rc *RedisCache) StoreAccessToken(ctx context.Context, token string) error {
	now := time.Now()
	expiresAt := NextTokenExpiry(now)

	data := TokenData{
		AccessToken: token,
		CreatedAt:   now.UnixMilli(),
		ExpiresAt:   expiresAt.UnixMilli(),
		IsValid:     true,
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal token data: %w", err)
	}

	if err := rc.client.Set(ctx, tokenKey, payload, time.Until(expiresAt)).Err(); err != nil {
		return fmt.Errorf("failed to store token in Redis: %w", err)
	}

	rc.log.Info("Stored access token in Redis", map[string]interface{}{
		"expires_at": expiresAt.Format(time.RFC3339),
	})
	return nil
}

// GetValidToken returns the cached token, or "" when missing or expired.
func (rc *RedisCache) GetValidToken(ctx context.Context) string {
	payload, err := rc.client.Get(ctx, tokenKey).Bytes()
	if err != nil {
		return ""
	}

	var data TokenData
	if err := json.Unmarshal(payload, &data); err != nil {
		rc.log.Error("Failed to parse cached token data", map[string]interface{}{
			"error": err.Error(),
		})
		return ""
	}

	if !data.IsValid || time.Now().UnixMilli() >= data.ExpiresAt {
		return ""
	}
	return data.AccessToken
}

// DeleteAccessToken drops the cached token.
func (rc *RedisCache) DeleteAccessToken(ctx context.Context) error {
	return rc.client.Del(ctx, tokenKey).Err()
}

// Close closes the underlying Redis connection.
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// NextTokenExpiry returns the next 06:00 IST, when Kite invalidates all
// access tokens.
func NextTokenExpiry(now time.Time) time.Time {
	ist, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		ist = time.UTC
	}
	local := now.In(ist)
	expiry := time.Date(local.Year(), local.Month(), local.Day(), 6, 0, 0, 0, ist)
	if !local.Before(expiry) {
		expiry = expiry.AddDate(0, 0, 1)
	}
	return expiry
}
