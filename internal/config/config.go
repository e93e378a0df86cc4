package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env            string
	Port           string
	LogLevel       string
	DatabaseDriver string // postgres | sqlite
	DatabaseURL    string
	RedisURL       string
	// OperatorKeyHash is the bcrypt hash of the key operators send in X-Operator-Key.
	OperatorKeyHash string
	RateLimitRPS    float64

	ReconcileDateWindowDays  int
	ReconcileAmountTolerance decimal.Decimal
	StalePendingDays         int
	ActivityLookbackDays     int
	HoldingConflictPolicy    string // drop | warn | overwrite

	SyncLockTTL      time.Duration
	SyncBatchTimeout time.Duration
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RECONCILE_DATE_WINDOW_DAYS", 8)
	v.SetDefault("RECONCILE_AMOUNT_TOLERANCE", "0.25")
	v.SetDefault("STALE_PENDING_DAYS", 8)
	v.SetDefault("ACTIVITY_LOOKBACK_DAYS", 30)
	v.SetDefault("HOLDING_CONFLICT_POLICY", "drop")
	v.SetDefault("SYNC_LOCK_TTL", "10m")
	v.SetDefault("SYNC_BATCH_TIMEOUT", "5m")
}

func fromViper(v *viper.Viper) (*Config, error) {
	tolerance, err := decimal.NewFromString(strings.TrimSpace(v.GetString("RECONCILE_AMOUNT_TOLERANCE")))
	if err != nil {
		return nil, fmt.Errorf("RECONCILE_AMOUNT_TOLERANCE: %w", err)
	}
	if tolerance.IsNegative() {
		return nil, fmt.Errorf("RECONCILE_AMOUNT_TOLERANCE must not be negative")
	}

	driver := strings.ToLower(strings.TrimSpace(v.GetString("DATABASE_DRIVER")))
	if driver != "postgres" && driver != "sqlite" {
		return nil, fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", driver)
	}

	return &Config{
		Env:                      v.GetString("APP_ENV"),
		Port:                     v.GetString("PORT"),
		LogLevel:                 v.GetString("LOG_LEVEL"),
		DatabaseDriver:           driver,
		DatabaseURL:              v.GetString("DATABASE_URL"),
		RedisURL:                 v.GetString("REDIS_URL"),
		OperatorKeyHash:          v.GetString("OPERATOR_KEY_HASH"),
		RateLimitRPS:             v.GetFloat64("RATE_LIMIT_RPS"),
		ReconcileDateWindowDays:  v.GetInt("RECONCILE_DATE_WINDOW_DAYS"),
		ReconcileAmountTolerance: tolerance,
		StalePendingDays:         v.GetInt("STALE_PENDING_DAYS"),
		ActivityLookbackDays:     v.GetInt("ACTIVITY_LOOKBACK_DAYS"),
		HoldingConflictPolicy:    v.GetString("HOLDING_CONFLICT_POLICY"),
		SyncLockTTL:              v.GetDuration("SYNC_LOCK_TTL"),
		SyncBatchTimeout:         v.GetDuration("SYNC_BATCH_TIMEOUT"),
	}, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
