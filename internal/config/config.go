package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Order     OrderConfig     `yaml:"order"`
	Checkout  CheckoutConfig  `yaml:"checkout"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Redis     RedisConfig     `yaml:"redis"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Auth      AuthConfig      `yaml:"auth"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// WriteTimeout must cover a gateway round trip on checkout and return routes.
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// Per-client limits applied to the payment return and callback routes.
	CallbackRateLimit float64 `yaml:"callbackRateLimit"`
	CallbackBurst     int     `yaml:"callbackBurst"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type OrderConfig struct {
	IDPrefix             string        `yaml:"idPrefix"`
	FulfillmentTxTimeout time.Duration `yaml:"fulfillmentTxTimeout"`
	MaxRetryAttempts     int           `yaml:"maxRetryAttempts"`
}

type CheckoutConfig struct {
	SiteURL               string  `yaml:"siteUrl"`
	Currency              string  `yaml:"currency"`
	FreeShippingThreshold float64 `yaml:"freeShippingThreshold"`
	ShippingFee           float64 `yaml:"shippingFee"`
	TaxRate               float64 `yaml:"taxRate"`
	Description           string  `yaml:"description"`
}

type GatewayConfig struct {
	Endpoint string        `yaml:"endpoint"`
	StoreID  string        `yaml:"storeId"`
	AuthKey  string        `yaml:"authKey"`
	TestMode bool          `yaml:"testMode"`
	Timeout  time.Duration `yaml:"timeout"`
}

type ReconcileConfig struct {
	VerifyTimeout      time.Duration `yaml:"verifyTimeout"`
	PersistMaxAttempts int           `yaml:"persistMaxAttempts"`
	PersistBackoff     time.Duration `yaml:"persistBackoff"`
	LockTTL            time.Duration `yaml:"lockTtl"`
	SettleTimeout      time.Duration `yaml:"settleTimeout"`
	SweepConcurrency   int           `yaml:"sweepConcurrency"`
	SweepBatchSize     int           `yaml:"sweepBatchSize"`
	SweepMinAge        time.Duration `yaml:"sweepMinAge"`
}

// RedisConfig leaves Addr empty to run without the cross-instance
// verification guard.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

type LedgerConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
	Issuer    string `yaml:"issuer"`
}

func Load() (*Config, error) {
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_READ_TIMEOUT", "10s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	viper.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "15s")
	viper.SetDefault("SERVER_CALLBACK_RATE_LIMIT", 5.0)
	viper.SetDefault("SERVER_CALLBACK_BURST", 10)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 3306)
	viper.SetDefault("DB_USER", "storefront")
	viper.SetDefault("DB_PASSWORD", "secret")
	viper.SetDefault("DB_NAME", "storefront")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ORDER_ID_PREFIX", "GZ")
	viper.SetDefault("ORDER_FULFILLMENT_TX_TIMEOUT", "5s")
	viper.SetDefault("ORDER_MAX_RETRY_ATTEMPTS", 3)
	viper.SetDefault("CHECKOUT_SITE_URL", "http://localhost:8080")
	viper.SetDefault("CHECKOUT_CURRENCY", "AED")
	viper.SetDefault("CHECKOUT_FREE_SHIPPING_THRESHOLD", 200.0)
	viper.SetDefault("CHECKOUT_SHIPPING_FEE", 25.0)
	viper.SetDefault("CHECKOUT_TAX_RATE", 0.05)
	viper.SetDefault("CHECKOUT_DESCRIPTION", "Storefront order")
	viper.SetDefault("GATEWAY_ENDPOINT", "https://secure.telr.com/gateway/order.json")
	viper.SetDefault("GATEWAY_STORE_ID", "")
	viper.SetDefault("GATEWAY_AUTH_KEY", "")
	viper.SetDefault("GATEWAY_TEST_MODE", true)
	viper.SetDefault("GATEWAY_TIMEOUT", "15s")
	viper.SetDefault("RECONCILE_VERIFY_TIMEOUT", "10s")
	viper.SetDefault("RECONCILE_PERSIST_MAX_ATTEMPTS", 3)
	viper.SetDefault("RECONCILE_PERSIST_BACKOFF", "100ms")
	viper.SetDefault("RECONCILE_LOCK_TTL", "30s")
	viper.SetDefault("RECONCILE_SETTLE_TIMEOUT", "15s")
	viper.SetDefault("RECONCILE_SWEEP_CONCURRENCY", 4)
	viper.SetDefault("RECONCILE_SWEEP_BATCH_SIZE", 50)
	viper.SetDefault("RECONCILE_SWEEP_MIN_AGE", "2m")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_KEY_PREFIX", "storefront")
	viper.SetDefault("LEDGER_PATH", "./data/payment-ledger.db")
	viper.SetDefault("AUTH_JWT_SECRET", "")
	viper.SetDefault("AUTH_ISSUER", "")

	var readTimeout, writeTimeout, shutdownTimeout time.Duration
	var connMaxLifetime, fulfillmentTxTimeout, gatewayTimeout time.Duration
	var verifyTimeout, persistBackoff, lockTTL, settleTimeout, sweepMinAge time.Duration

	durations := map[string]*time.Duration{
		"SERVER_READ_TIMEOUT":          &readTimeout,
		"SERVER_WRITE_TIMEOUT":         &writeTimeout,
		"SERVER_SHUTDOWN_TIMEOUT":      &shutdownTimeout,
		"DB_CONN_MAX_LIFETIME":         &connMaxLifetime,
		"ORDER_FULFILLMENT_TX_TIMEOUT": &fulfillmentTxTimeout,
		"GATEWAY_TIMEOUT":              &gatewayTimeout,
		"RECONCILE_VERIFY_TIMEOUT":     &verifyTimeout,
		"RECONCILE_PERSIST_BACKOFF":    &persistBackoff,
		"RECONCILE_LOCK_TTL":           &lockTTL,
		"RECONCILE_SETTLE_TIMEOUT":     &settleTimeout,
		"RECONCILE_SWEEP_MIN_AGE":      &sweepMinAge,
	}

	for key, dst := range durations {
		d, err := time.ParseDuration(viper.GetString(key))
		if err != nil {
			return nil, err
		}
		*dst = d
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:              viper.GetInt("SERVER_PORT"),
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			ShutdownTimeout:   shutdownTimeout,
			CallbackRateLimit: viper.GetFloat64("SERVER_CALLBACK_RATE_LIMIT"),
			CallbackBurst:     viper.GetInt("SERVER_CALLBACK_BURST"),
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			User:            viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Name:            viper.GetString("DB_NAME"),
			MaxOpenConns:    viper.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    viper.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
		Order: OrderConfig{
			IDPrefix:             viper.GetString("ORDER_ID_PREFIX"),
			FulfillmentTxTimeout: fulfillmentTxTimeout,
			MaxRetryAttempts:     viper.GetInt("ORDER_MAX_RETRY_ATTEMPTS"),
		},
		Checkout: CheckoutConfig{
			SiteURL:               viper.GetString("CHECKOUT_SITE_URL"),
			Currency:              viper.GetString("CHECKOUT_CURRENCY"),
			FreeShippingThreshold: viper.GetFloat64("CHECKOUT_FREE_SHIPPING_THRESHOLD"),
			ShippingFee:           viper.GetFloat64("CHECKOUT_SHIPPING_FEE"),
			TaxRate:               viper.GetFloat64("CHECKOUT_TAX_RATE"),
			Description:           viper.GetString("CHECKOUT_DESCRIPTION"),
		},
		Gateway: GatewayConfig{
			Endpoint: viper.GetString("GATEWAY_ENDPOINT"),
			StoreID:  viper.GetString("GATEWAY_STORE_ID"),
			AuthKey:  viper.GetString("GATEWAY_AUTH_KEY"),
			TestMode: viper.GetBool("GATEWAY_TEST_MODE"),
			Timeout:  gatewayTimeout,
		},
		Reconcile: ReconcileConfig{
			VerifyTimeout:      verifyTimeout,
			PersistMaxAttempts: viper.GetInt("RECONCILE_PERSIST_MAX_ATTEMPTS"),
			PersistBackoff:     persistBackoff,
			LockTTL:            lockTTL,
			SettleTimeout:      settleTimeout,
			SweepConcurrency:   viper.GetInt("RECONCILE_SWEEP_CONCURRENCY"),
			SweepBatchSize:     viper.GetInt("RECONCILE_SWEEP_BATCH_SIZE"),
			SweepMinAge:        sweepMinAge,
		},
		Redis: RedisConfig{
			Addr:      viper.GetString("REDIS_ADDR"),
			Password:  viper.GetString("REDIS_PASSWORD"),
			DB:        viper.GetInt("REDIS_DB"),
			KeyPrefix: viper.GetString("REDIS_KEY_PREFIX"),
		},
		Ledger: LedgerConfig{
			Path: viper.GetString("LEDGER_PATH"),
		},
		Auth: AuthConfig{
			JWTSecret: viper.GetString("AUTH_JWT_SECRET"),
			Issuer:    viper.GetString("AUTH_ISSUER"),
		},
	}

	return cfg, nil
}
