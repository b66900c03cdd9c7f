package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"healthsync/internal/app/client"
	"healthsync/internal/app/client/config"
	"healthsync/internal/utils/logger"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"
)

var (
	cfgFile    string
	cfg        *config.Config
	log        *slog.Logger
	api        *client.Client
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "syncctl",
	Short: "syncctl - клиент сервера синхронизации healthsync",
	Long: `syncctl отправляет пакеты записей на сервер healthsync, забирает
изменения и помогает разбирать конфликты синхронизации.

Токен и идентификатор устройства задаются флагами, файлом конфигурации
или переменными SYNC_TOKEN и DEVICE_ID.`,
	PersistentPreRunE: setupApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Ошибка: %v\n", err)
		if errors.Is(err, client.ErrUnauthorized) {
			fmt.Fprintln(os.Stderr, "Проверьте токен (--token) и идентификатор устройства (--device)")
		}
		os.Exit(1)
	}
}

func setupApp(_ *cobra.Command, _ []string) error {
	v := viper.GetViper()
	if err := readConfigFile(v); err != nil {
		return fmt.Errorf("ошибка чтения конфигурации: %w", err)
	}

	var err error
	cfg, err = config.Load(v)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	log = logger.New(cfg.Env)
	api = client.New(cfg, log)
	return nil
}

func readConfigFile(v *viper.Viper) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".healthsync"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("syncctl")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "конфигурационный файл")
	flags.BoolVar(&jsonOutput, "json", false, "вывод в формате JSON")
	flags.String("server", "", "адрес сервера healthsync")
	flags.String("token", "", "токен устройства")
	flags.String("device", "", "идентификатор устройства")

	_ = viper.BindPFlag("server_address", flags.Lookup("server"))
	_ = viper.BindPFlag("sync_token", flags.Lookup("token"))
	_ = viper.BindPFlag("device_id", flags.Lookup("device"))

	rootCmd.AddCommand(healthCmd, statusCmd, sessionCmd, conflictsCmd, uploadCmd, downloadCmd)
}
