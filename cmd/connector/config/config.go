package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MarketplaceConfig holds source-marketplace API settings. An empty BaseURL
// means no HTTP client is configured and the connector runs in-memory.
type MarketplaceConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// FulfillmentConfig holds fulfillment-provider API settings.
type FulfillmentConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// RedisConfig holds Redis connection and behavior settings for the inventory
// cache.
type RedisConfig struct {
	URL                string
	KeyPrefix          string
	DialTimeout        *time.Duration
	ReadTimeout        *time.Duration
	WriteTimeout       *time.Duration
	PoolSize           *int
	MinIdleConns       *int
	MaxRetries         *int
	HealthcheckTimeout time.Duration
	TLSConfig          *tls.Config
}

// RoutingConfig holds batch routing settings.
type RoutingConfig struct {
	MaxConcurrentOrders int
	StopOnError         bool
	PageSize            int
}

// InventoryConfig holds inventory cache policy.
type InventoryConfig struct {
	CacheTTL          time.Duration
	LowStockThreshold int
	DisableCaching    bool
	BatchSize         int
	SafetyStock       int
}

// TrackingConfig holds tracking-sync and scheduler settings.
type TrackingConfig struct {
	MaxRetries         int
	RetryDelay         time.Duration
	SyncInterval       time.Duration
	RateLimitPerMinute int
	SchedulerEnabled   bool
	DryRun             bool
}

// ObservabilityConfig holds the HTTP address the connector serves its
// webhook, metrics, and event feed on.
type ObservabilityConfig struct {
	Addr string
}

// LoadMarketplace reads marketplace API settings from env.
func LoadMarketplace() (MarketplaceConfig, error) {
	cfg := MarketplaceConfig{
		BaseURL: strings.TrimSpace(os.Getenv("MARKETPLACE_BASE_URL")),
		Token:   strings.TrimSpace(os.Getenv("MARKETPLACE_TOKEN")),
	}
	timeout, err := optionalDuration("MARKETPLACE_TIMEOUT")
	if err != nil {
		return cfg, err
	}
	if timeout != nil {
		cfg.Timeout = *timeout
	}
	if cfg.BaseURL != "" && cfg.Token == "" {
		return cfg, errors.New("MARKETPLACE_TOKEN is required when MARKETPLACE_BASE_URL is set")
	}
	return cfg, nil
}

// LoadFulfillment reads fulfillment-provider API settings from env.
func LoadFulfillment() (FulfillmentConfig, error) {
	cfg := FulfillmentConfig{
		BaseURL: strings.TrimSpace(os.Getenv("FULFILLMENT_BASE_URL")),
		Token:   strings.TrimSpace(os.Getenv("FULFILLMENT_TOKEN")),
	}
	timeout, err := optionalDuration("FULFILLMENT_TIMEOUT")
	if err != nil {
		return cfg, err
	}
	if timeout != nil {
		cfg.Timeout = *timeout
	}
	if cfg.BaseURL != "" && cfg.Token == "" {
		return cfg, errors.New("FULFILLMENT_TOKEN is required when FULFILLMENT_BASE_URL is set")
	}
	return cfg, nil
}

// LoadRedis reads inventory-cache Redis settings from env. The second return
// reports whether Redis is configured at all.
func LoadRedis() (RedisConfig, bool, error) {
	cfg := RedisConfig{
		URL:       strings.TrimSpace(os.Getenv("REDIS_URL")),
		KeyPrefix: strings.TrimSpace(os.Getenv("REDIS_KEY_PREFIX")),
	}
	if cfg.URL == "" {
		return cfg, false, nil
	}

	var err error
	if cfg.DialTimeout, err = optionalDuration("REDIS_DIAL_TIMEOUT"); err != nil {
		return cfg, false, err
	}
	if cfg.ReadTimeout, err = optionalDuration("REDIS_READ_TIMEOUT"); err != nil {
		return cfg, false, err
	}
	if cfg.WriteTimeout, err = optionalDuration("REDIS_WRITE_TIMEOUT"); err != nil {
		return cfg, false, err
	}
	if cfg.PoolSize, err = optionalInt("REDIS_POOL_SIZE"); err != nil {
		return cfg, false, err
	}
	if cfg.MinIdleConns, err = optionalInt("REDIS_MIN_IDLE_CONNS"); err != nil {
		return cfg, false, err
	}
	if cfg.MaxRetries, err = optionalInt("REDIS_MAX_RETRIES"); err != nil {
		return cfg, false, err
	}

	healthcheck, err := optionalDuration("REDIS_HEALTHCHECK_TIMEOUT")
	if err != nil {
		return cfg, false, err
	}
	if healthcheck != nil {
		cfg.HealthcheckTimeout = *healthcheck
	} else {
		cfg.HealthcheckTimeout = 5 * time.Second
	}

	if cfg.TLSConfig, err = loadRedisTLSFromEnv(); err != nil {
		return cfg, false, err
	}

	return cfg, true, nil
}

// LoadRouting reads batch routing settings from env.
func LoadRouting() (RoutingConfig, error) {
	cfg := RoutingConfig{}
	var err error

	concurrent, err := optionalInt("ROUTING_MAX_CONCURRENT_ORDERS")
	if err != nil {
		return cfg, err
	}
	if concurrent != nil {
		cfg.MaxConcurrentOrders = *concurrent
	}
	if cfg.StopOnError, err = optionalBool("ROUTING_STOP_ON_ERROR"); err != nil {
		return cfg, err
	}
	pageSize, err := optionalInt("ROUTING_PAGE_SIZE")
	if err != nil {
		return cfg, err
	}
	if pageSize != nil {
		cfg.PageSize = *pageSize
	}
	return cfg, nil
}

// LoadInventory reads inventory cache policy from env.
func LoadInventory() (InventoryConfig, error) {
	cfg := InventoryConfig{}
	var err error

	ttl, err := optionalDuration("INVENTORY_CACHE_TTL")
	if err != nil {
		return cfg, err
	}
	if ttl != nil {
		cfg.CacheTTL = *ttl
	}
	threshold, err := optionalInt("INVENTORY_LOW_STOCK_THRESHOLD")
	if err != nil {
		return cfg, err
	}
	if threshold != nil {
		cfg.LowStockThreshold = *threshold
	}
	if cfg.DisableCaching, err = optionalBool("INVENTORY_DISABLE_CACHING"); err != nil {
		return cfg, err
	}
	batch, err := optionalInt("INVENTORY_BATCH_SIZE")
	if err != nil {
		return cfg, err
	}
	if batch != nil {
		cfg.BatchSize = *batch
	}
	safety, err := optionalInt("INVENTORY_SAFETY_STOCK")
	if err != nil {
		return cfg, err
	}
	if safety != nil {
		cfg.SafetyStock = *safety
	}
	return cfg, nil
}

// LoadTracking reads tracking-sync and scheduler settings from env.
func LoadTracking() (TrackingConfig, error) {
	cfg := TrackingConfig{}
	var err error

	retries, err := optionalInt("TRACKING_MAX_RETRIES")
	if err != nil {
		return cfg, err
	}
	if retries != nil {
		cfg.MaxRetries = *retries
	}
	delay, err := optionalDuration("TRACKING_RETRY_DELAY")
	if err != nil {
		return cfg, err
	}
	if delay != nil {
		cfg.RetryDelay = *delay
	}
	interval, err := optionalDuration("TRACKING_SYNC_INTERVAL")
	if err != nil {
		return cfg, err
	}
	if interval != nil {
		cfg.SyncInterval = *interval
	}
	rate, err := optionalInt("TRACKING_RATE_LIMIT_PER_MINUTE")
	if err != nil {
		return cfg, err
	}
	if rate != nil {
		cfg.RateLimitPerMinute = *rate
	}
	if cfg.SchedulerEnabled, err = optionalBool("TRACKING_SCHEDULER_ENABLED"); err != nil {
		return cfg, err
	}
	if cfg.DryRun, err = optionalBool("TRACKING_DRY_RUN"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadObservability reads the connector's HTTP server address from env.
func LoadObservability() (ObservabilityConfig, error) {
	addr, err := requiredString("OBS_ADDR")
	if err != nil {
		return ObservabilityConfig{}, err
	}
	return ObservabilityConfig{Addr: addr}, nil
}

func loadRedisTLSFromEnv() (*tls.Config, error) {
	caFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CA_FILE"))
	certFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CERT_FILE"))
	keyFile := strings.TrimSpace(os.Getenv("REDIS_TLS_KEY_FILE"))
	serverName := strings.TrimSpace(os.Getenv("REDIS_TLS_SERVER_NAME"))
	insecureStr := strings.TrimSpace(os.Getenv("REDIS_TLS_INSECURE_SKIP_VERIFY"))

	if caFile == "" && certFile == "" && keyFile == "" && serverName == "" && insecureStr == "" {
		return nil, nil
	}
	if (certFile == "") != (keyFile == "") {
		return nil, errors.New("REDIS_TLS_CERT_FILE and REDIS_TLS_KEY_FILE must be set together")
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
	}

	if insecureStr != "" {
		insecure, err := strconv.ParseBool(insecureStr)
		if err != nil {
			return nil, fmt.Errorf("REDIS_TLS_INSECURE_SKIP_VERIFY: %w", err)
		}
		tlsConfig.InsecureSkipVerify = insecure
	}

	if caFile != "" {
		pemData, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read REDIS_TLS_CA_FILE: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, errors.New("REDIS_TLS_CA_FILE contains no valid certificates")
		}
		tlsConfig.RootCAs = pool
	}

	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load redis TLS keypair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func optionalDuration(name string) (*time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalInt(name string) (*int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalBool(name string) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return val, nil
}

func requiredString(name string) (string, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return raw, nil
}
