package cmd

import (
	"fmt"
	"os"

	"healthsync/internal/app/server/config"
	"healthsync/internal/utils/logger"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

var (
	cfg *config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "healthsync",
	Short: "Сервер синхронизации медицинских данных",
	Long: `healthsync принимает пакеты записей с устройств, разрешает конфликты
версий и отдает изменения после водяного знака.

Настройки читаются из окружения и файла .env.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setup(_ *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	log = logger.New(cfg.Env)
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}
