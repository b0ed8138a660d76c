package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Configはアプリ全体の設定
type Config struct {
	Port     string // サーバーポート（8080）
	GoEnv    string // development/production
	LogLevel string // debug/info/warn/error

	Storage string // postgres / memory

	DatabaseURL      string // あれば最優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string

	RedisURL        string        // 空ならキャッシュなし
	CatalogCacheTTL time.Duration // 商品キャッシュの有効期間

	TaxRateBPS            int64 // 税率（1/10000単位、1000=10%）
	ShippingFlatFee       int64 // 送料（最小通貨単位）
	FreeShippingThreshold int64 // この小計以上で送料無料（0なら無効）
	OrderNumberAttempts   int   // 注文番号衝突時の再試行回数

	RateLimitRPS float64 // 0なら無効
}

// Loadは環境変数から設定を読む（未設定はデフォルト）
func Load() (Config, error) {
	cfg := Config{
		Port:     getenv("PORT", "8080"),
		GoEnv:    getenv("GO_ENV", "development"),
		LogLevel: getenv("LOG_LEVEL", "info"),
		Storage:  strings.ToLower(getenv("STORAGE", StoragePostgres)),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "storefront"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		RedisURL: os.Getenv("REDIS_URL"),
	}

	var err error
	if cfg.PostgresPort, err = atoi("POSTGRES_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.TaxRateBPS, err = atoi64("TAX_RATE_BPS", 0); err != nil {
		return Config{}, err
	}
	if cfg.ShippingFlatFee, err = atoi64("SHIPPING_FLAT_FEE", 0); err != nil {
		return Config{}, err
	}
	if cfg.FreeShippingThreshold, err = atoi64("FREE_SHIPPING_THRESHOLD", 0); err != nil {
		return Config{}, err
	}
	if cfg.OrderNumberAttempts, err = atoi("ORDER_NUMBER_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitRPS, err = atof("RATE_LIMIT_RPS", 20); err != nil {
		return Config{}, err
	}
	if cfg.CatalogCacheTTL, err = duration("CATALOG_CACHE_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	//チェック
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	switch c.Storage {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("STORAGE must be %q or %q", StoragePostgres, StorageMemory)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug/info/warn/error")
	}
	if c.TaxRateBPS < 0 || c.TaxRateBPS > 10000 {
		return fmt.Errorf("TAX_RATE_BPS must be between 0 and 10000")
	}
	if c.ShippingFlatFee < 0 {
		return fmt.Errorf("SHIPPING_FLAT_FEE must be >= 0")
	}
	if c.FreeShippingThreshold < 0 {
		return fmt.Errorf("FREE_SHIPPING_THRESHOLD must be >= 0")
	}
	if c.OrderNumberAttempts < 1 {
		return fmt.Errorf("ORDER_NUMBER_ATTEMPTS must be >= 1")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// ":8080" 形式
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// DATABASE_URL が無ければ個別の値から組み立てる
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoi(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func atoi64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func atof(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return f, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration (e.g. 30s): %w", key, err)
	}
	return d, nil
}
