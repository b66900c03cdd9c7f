package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultEnv           = "local"
	defaultConfigDir     = ".healthsync"
	defaultTimeout       = 30 * time.Second
)

type Config struct {
	Env           string
	ServerAddress string
	Token         string
	DeviceID      string
	ConfigDir     string
	Timeout       time.Duration
	EnableTLS     bool
}

// Load читает настройки syncctl: флаги и файл уже загружены в v, поверх них окружение
func Load(v *viper.Viper) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v.AutomaticEnv()
	v.SetDefault("app_env", defaultEnv)
	v.SetDefault("server_address", defaultServerAddress)
	v.SetDefault("config_dir", defaultConfigDir)
	v.SetDefault("client_timeout", defaultTimeout)
	v.SetDefault("enable_tls", false)

	configDir := v.GetString("config_dir")
	if configDir == defaultConfigDir {
		if home, err := os.UserHomeDir(); err == nil {
			configDir = filepath.Join(home, configDir)
		}
	}

	config := &Config{
		Env:           v.GetString("app_env"),
		ServerAddress: v.GetString("server_address"),
		Token:         v.GetString("sync_token"),
		DeviceID:      v.GetString("device_id"),
		ConfigDir:     configDir,
		Timeout:       v.GetDuration("client_timeout"),
		EnableTLS:     v.GetBool("enable_tls"),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return errors.New("server_address не может быть пустым")
	}
	if c.Timeout <= 0 {
		return errors.New("client_timeout должен быть положительным")
	}
	return nil
}

// BaseURL адрес сервера со схемой
func (c *Config) BaseURL() string {
	if strings.Contains(c.ServerAddress, "://") {
		return strings.TrimRight(c.ServerAddress, "/")
	}
	scheme := "http://"
	if c.EnableTLS {
		scheme = "https://"
	}
	return scheme + strings.TrimRight(c.ServerAddress, "/")
}
