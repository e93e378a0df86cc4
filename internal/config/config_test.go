package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "PORT", "DATABASE_DRIVER", "RECONCILE_AMOUNT_TOLERANCE", "HOLDING_CONFLICT_POLICY", "SYNC_LOCK_TTL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.True(t, cfg.ReconcileAmountTolerance.Equal(decimal.RequireFromString("0.25")))
	assert.Equal(t, "drop", cfg.HoldingConflictPolicy)
	assert.Equal(t, 10*time.Minute, cfg.SyncLockTTL)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "file:ledger.db")
	t.Setenv("RECONCILE_AMOUNT_TOLERANCE", "0.30")
	t.Setenv("STALE_PENDING_DAYS", "10")
	t.Setenv("SYNC_LOCK_TTL", "90s")
	t.Setenv("HOLDING_CONFLICT_POLICY", "warn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "file:ledger.db", cfg.DatabaseURL)
	assert.True(t, cfg.ReconcileAmountTolerance.Equal(decimal.RequireFromString("0.3")))
	assert.Equal(t, 10, cfg.StalePendingDays)
	assert.Equal(t, 8, cfg.ReconcileDateWindowDays)
	assert.Equal(t, 30, cfg.ActivityLookbackDays)
	assert.Equal(t, 90*time.Second, cfg.SyncLockTTL)
	assert.Equal(t, 5*time.Minute, cfg.SyncBatchTimeout)
	assert.Equal(t, "warn", cfg.HoldingConflictPolicy)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "mysql")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("RECONCILE_AMOUNT_TOLERANCE", "-1")
	_, err = Load()
	assert.Error(t, err)
}
