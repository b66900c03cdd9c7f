package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"healthsync/internal/domain/sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = ".env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env     string
	DB      db
	Server  server
	Logger  logger
	Sync    syncCfg
	Tracing tracing
	Auth    auth
}

type db struct {
	Driver      string `env:"DB_DRIVER" envDefault:"postgres"`
	DatabaseURI string `env:"DATABASE_URI"`
	// Migrations пустой путь означает встроенные миграции
	Migrations string `env:"MIGRATIONS_PATH"`
}

type server struct {
	RunAddress string `env:"RUN_ADDRESS" envDefault:":8080"`
}

type logger struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type syncCfg struct {
	CallTimeout        time.Duration `env:"SYNC_CALL_TIMEOUT" envDefault:"120s"`
	ActivitiesPageSize int           `env:"SYNC_ACTIVITIES_PAGE_SIZE" envDefault:"1000"`
	DiagnosesPageSize  int           `env:"SYNC_DIAGNOSES_PAGE_SIZE" envDefault:"500"`
	MaxAttempts        int           `env:"SYNC_MAX_ATTEMPTS" envDefault:"3"`
	BackoffMultiplier  float64       `env:"SYNC_BACKOFF_MULTIPLIER" envDefault:"2"`
	RetryBaseDelay     time.Duration `env:"SYNC_RETRY_BASE_DELAY" envDefault:"30s"`
}

type tracing struct {
	Exporter   string  `env:"TRACING_EXPORTER" envDefault:"none"`
	Endpoint   string  `env:"TRACING_ENDPOINT"`
	SampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1"`
}

type auth struct {
	TokenTTL time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", EnvLocal)
	v.SetDefault("db_driver", DriverPostgres)
	v.SetDefault("run_address", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("sync_call_timeout", "120s")
	v.SetDefault("sync_activities_page_size", 1000)
	v.SetDefault("sync_diagnoses_page_size", 500)
	v.SetDefault("sync_max_attempts", 3)
	v.SetDefault("sync_backoff_multiplier", 2.0)
	v.SetDefault("sync_retry_base_delay", "30s")
	v.SetDefault("tracing_exporter", "none")
	v.SetDefault("tracing_sample_rate", 1.0)
	v.SetDefault("auth_token_ttl", "24h")
}

// Load читает конфигурацию из окружения, .env не обязателен
func Load() (*Config, error) {
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envPath, err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	config := Config{
		Env: v.GetString("app_env"),
		DB: db{
			Driver:      strings.ToLower(v.GetString("db_driver")),
			DatabaseURI: v.GetString("database_uri"),
			Migrations:  v.GetString("migrations_path"),
		},
		Server: server{RunAddress: v.GetString("run_address")},
		Logger: logger{LogLevel: v.GetString("log_level")},
		Sync: syncCfg{
			CallTimeout:        v.GetDuration("sync_call_timeout"),
			ActivitiesPageSize: v.GetInt("sync_activities_page_size"),
			DiagnosesPageSize:  v.GetInt("sync_diagnoses_page_size"),
			MaxAttempts:        v.GetInt("sync_max_attempts"),
			BackoffMultiplier:  v.GetFloat64("sync_backoff_multiplier"),
			RetryBaseDelay:     v.GetDuration("sync_retry_base_delay"),
		},
		Tracing: tracing{
			Exporter:   strings.ToLower(v.GetString("tracing_exporter")),
			Endpoint:   v.GetString("tracing_endpoint"),
			SampleRate: v.GetFloat64("tracing_sample_rate"),
		},
		Auth: auth{TokenTTL: v.GetDuration("auth_token_ttl")},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		errs = append(errs, fmt.Errorf("unknown APP_ENV %q", c.Env))
	}
	switch c.DB.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DB.Driver))
	}
	if c.DB.DatabaseURI == "" {
		errs = append(errs, errors.New("DATABASE_URI is required"))
	}
	if c.Sync.CallTimeout <= 0 {
		errs = append(errs, errors.New("SYNC_CALL_TIMEOUT must be positive"))
	}
	if c.Sync.ActivitiesPageSize < 1 || c.Sync.DiagnosesPageSize < 1 {
		errs = append(errs, errors.New("sync page sizes must be positive"))
	}
	if c.Sync.MaxAttempts < 1 {
		errs = append(errs, errors.New("SYNC_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Sync.BackoffMultiplier < 1 {
		errs = append(errs, errors.New("SYNC_BACKOFF_MULTIPLIER must be at least 1"))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, errors.New("TRACING_SAMPLE_RATE must be within [0, 1]"))
	}

	return errors.Join(errs...)
}

// SyncService параметры сервиса синхронизации
func (c *Config) SyncService() *sync.ServiceConfig {
	sc := sync.DefaultServiceConfig()
	sc.CallTimeout = c.Sync.CallTimeout
	sc.PageSizes[sync.DataTypeActivities] = c.Sync.ActivitiesPageSize
	sc.PageSizes[sync.DataTypeDiagnoses] = c.Sync.DiagnosesPageSize
	sc.MaxAttempts = c.Sync.MaxAttempts
	sc.BackoffMultiplier = c.Sync.BackoffMultiplier
	sc.RetryBaseDelay = c.Sync.RetryBaseDelay
	return sc
}
