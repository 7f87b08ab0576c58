package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"strings"

	"shopbridge/cmd/connector/config"
	trackingdb "shopbridge/internal/db/tracking"
	"shopbridge/internal/fulfillment"
	"shopbridge/internal/inventory"
	"shopbridge/internal/tracking"

	"github.com/redis/go-redis/v9"
)

var openTrackingDB = func(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

// buildInventorySync wires the inventory cache against Redis when
// REDIS_URL is set, otherwise against the in-memory store.
func buildInventorySync(ctx context.Context, provider fulfillment.Client) (*inventory.Sync, func(), error) {
	invCfg, err := config.LoadInventory()
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	var store inventory.CacheStore

	redisCfg, enabled, err := config.LoadRedis()
	if err != nil {
		return nil, nil, err
	}
	if enabled {
		client, err := buildRedisClient(ctx, redisCfg)
		if err != nil {
			return nil, nil, err
		}
		store = inventory.NewRedisStore(inventory.WrapRedisClient(client), redisCfg.KeyPrefix)
		cleanup = func() {
			if err := client.Close(); err != nil {
				log.Printf("close redis: %v", err)
			}
		}
		log.Printf("redis inventory cache enabled")
	}

	sync, err := inventory.New(provider, store, inventory.Config{
		CacheTTL:          invCfg.CacheTTL,
		LowStockThreshold: invCfg.LowStockThreshold,
		DisableCaching:    invCfg.DisableCaching,
		BatchSize:         invCfg.BatchSize,
		SafetyStock:       invCfg.SafetyStock,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return sync, cleanup, nil
}

func buildRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.DialTimeout != nil {
		opts.DialTimeout = *cfg.DialTimeout
	}
	if cfg.ReadTimeout != nil {
		opts.ReadTimeout = *cfg.ReadTimeout
	}
	if cfg.WriteTimeout != nil {
		opts.WriteTimeout = *cfg.WriteTimeout
	}
	if cfg.PoolSize != nil {
		opts.PoolSize = *cfg.PoolSize
	}
	if cfg.MinIdleConns != nil {
		opts.MinIdleConns = *cfg.MinIdleConns
	}
	if cfg.MaxRetries != nil {
		opts.MaxRetries = *cfg.MaxRetries
	}
	if cfg.TLSConfig != nil {
		opts.TLSConfig = cfg.TLSConfig
	}

	client := redis.NewClient(opts)

	pingCtx := ctx
	if pingCtx == nil {
		pingCtx = context.Background()
	}
	if cfg.HealthcheckTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(pingCtx, cfg.HealthcheckTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// buildTrackingStore wires tracking records against Postgres when
// DATABASE_URL is set, otherwise against the in-memory store.
func buildTrackingStore(ctx context.Context) (tracking.RecordStore, func(), error) {
	cleanup := func() {}
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		return tracking.NewMemoryStore(), cleanup, nil
	}

	db, err := openTrackingDB("pgx", dsn)
	if err != nil {
		return nil, nil, err
	}
	store, err := trackingdb.NewPostgresStoreWithSchema(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, errors.Join(errors.New("init tracking store"), err)
	}
	log.Printf("postgres tracking records enabled")
	cleanup = func() {
		if err := db.Close(); err != nil {
			log.Printf("close tracking db: %v", err)
		}
	}
	return store, cleanup, nil
}
