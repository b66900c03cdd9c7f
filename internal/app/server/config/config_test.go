package config

import (
	"testing"
	"time"

	"healthsync/internal/domain/sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URI", "postgres://localhost:5432/healthsync")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvLocal, cfg.Env)
	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, ":8080", cfg.Server.RunAddress)
	assert.Equal(t, 120*time.Second, cfg.Sync.CallTimeout)
	assert.Equal(t, 1000, cfg.Sync.ActivitiesPageSize)
	assert.Equal(t, 500, cfg.Sync.DiagnosesPageSize)
	assert.Equal(t, 3, cfg.Sync.MaxAttempts)
	assert.Equal(t, 2.0, cfg.Sync.BackoffMultiplier)
	assert.Equal(t, 30*time.Second, cfg.Sync.RetryBaseDelay)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", EnvProd)
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DATABASE_URI", "file:healthsync.db")
	t.Setenv("RUN_ADDRESS", ":9090")
	t.Setenv("SYNC_CALL_TIMEOUT", "45s")
	t.Setenv("SYNC_DIAGNOSES_PAGE_SIZE", "50")
	t.Setenv("SYNC_MAX_ATTEMPTS", "5")
	t.Setenv("TRACING_EXPORTER", "otlp")
	t.Setenv("TRACING_ENDPOINT", "collector:4318")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvProd, cfg.Env)
	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, ":9090", cfg.Server.RunAddress)
	assert.Equal(t, 45*time.Second, cfg.Sync.CallTimeout)
	assert.Equal(t, 50, cfg.Sync.DiagnosesPageSize)
	assert.Equal(t, 5, cfg.Sync.MaxAttempts)
	assert.Equal(t, "otlp", cfg.Tracing.Exporter)
	assert.Equal(t, "collector:4318", cfg.Tracing.Endpoint)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing database",
			env:  map[string]string{},
			want: "DATABASE_URI is required",
		},
		{
			name: "unknown driver",
			env:  map[string]string{"DATABASE_URI": "x", "DB_DRIVER": "mysql"},
			want: "unknown DB_DRIVER",
		},
		{
			name: "zero attempts",
			env:  map[string]string{"DATABASE_URI": "x", "SYNC_MAX_ATTEMPTS": "0"},
			want: "SYNC_MAX_ATTEMPTS",
		},
		{
			name: "sample rate out of range",
			env:  map[string]string{"DATABASE_URI": "x", "TRACING_SAMPLE_RATE": "1.5"},
			want: "TRACING_SAMPLE_RATE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URI", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_SyncService(t *testing.T) {
	cfg := &Config{Sync: syncCfg{
		CallTimeout:        time.Minute,
		ActivitiesPageSize: 10,
		DiagnosesPageSize:  5,
		MaxAttempts:        4,
		BackoffMultiplier:  3,
		RetryBaseDelay:     time.Second,
	}}

	sc := cfg.SyncService()
	assert.Equal(t, time.Minute, sc.CallTimeout)
	assert.Equal(t, 10, sc.PageSizes[sync.DataTypeActivities])
	assert.Equal(t, 5, sc.PageSizes[sync.DataTypeDiagnoses])
	assert.Equal(t, 1, sc.PageSizes[sync.DataTypeUserProfile])
	assert.Equal(t, 4, sc.MaxAttempts)
	assert.Equal(t, 3.0, sc.BackoffMultiplier)
}
