package main

import (
	"context"
	"os"
	"time"

	"kiteclient/cache"
	"kiteclient/config"
	"kiteclient/db"
	"kiteclient/instruments"
	"kiteclient/logger"
	"kiteclient/session"
	"kiteclient/token"
)

func main() {
	log := logger.GetLogger()

	cfg, err := config.GetConfig()
	if err != nil {
		log.Error("Failed to load config", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	store, err := db.GetSQLiteHelper(cfg.SQLite.Path)
	if err != nil {
		log.Error("Failed to initialize token store", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
	defer store.Close()

	var tokenCache token.Cache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Error("Redis unavailable, continuing without token cache", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			tokenCache = redisCache
		}
	}

	gen := session.NewGenerator(session.WithTimeout(cfg.Kite.Timeout))
	var mgr token.TokenManager = token.NewManager(gen, session.User{
		UserID:     cfg.Kite.UserID,
		Password:   cfg.Kite.UserPassword,
		TOTPSecret: cfg.Kite.TOTPKey,
		APIKey:     cfg.Kite.APIKey,
		APISecret:  cfg.Kite.APISecret,
	}, store, tokenCache)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	accessToken, err := mgr.GetValidToken(ctx)
	if err != nil {
		log.Error("Failed to obtain access token", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	log.Info("Access token ready", map[string]interface{}{
		"token_length": len(accessToken),
	})

	catalog := loadCatalog(ctx, cfg)
	if catalog == nil {
		os.Exit(1)
	}

	// Example query: NIFTY futures expiries
	expiries := catalog.Query().
		Name("NIFTY").
		InstrumentType("FUT").
		GetExpiries()

	formatted := make([]string, 0, len(expiries))
	for _, e := range expiries {
		formatted = append(formatted, e.Format("2006-01-02"))
	}

	log.Info("NIFTY futures expiries", map[string]interface{}{
		"count":    len(formatted),
		"expiries": formatted,
	})
}

// loadCatalog prefers the day's snapshot over a fresh download.
func loadCatalog(ctx context.Context, cfg *config.Config) *instruments.Catalog {
	log := logger.GetLogger()

	if path := cfg.Instruments.SnapshotPath; path != "" {
		if info, err := os.Stat(path); err == nil && isToday(info.ModTime()) {
			catalog, err := instruments.LoadSnapshot(path)
			if err == nil {
				return catalog
			}
			log.Error("Failed to load snapshot, downloading instead", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	catalog, err := instruments.Fetch(ctx, instruments.WithURL(cfg.Instruments.URL))
	if err != nil {
		log.Error("Failed to fetch instrument dump", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	if path := cfg.Instruments.SnapshotPath; path != "" {
		if err := catalog.SaveSnapshot(path); err != nil {
			log.Error("Failed to save snapshot", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return catalog
}

func isToday(t time.Time) bool {
	now := time.Now()
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
