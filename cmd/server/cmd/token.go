package cmd

import (
	"errors"
	"fmt"

	"healthsync/internal/domain/session"
	"healthsync/internal/infrastructure/storage"

	"github.com/spf13/cobra"
)

var (
	tokenUserID   int
	tokenDeviceID string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Управление токенами устройств",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Выпустить токен для пользователя и устройства",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if tokenUserID <= 0 {
			return errors.New("--user должен быть положительным")
		}

		backend, err := storage.Open(cmd.Context(), cfg, log)
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		defer backend.Close()

		svc := session.NewService(backend.Sessions(), log, cfg.Auth.TokenTTL)
		token, err := svc.Create(cmd.Context(), tokenUserID, tokenDeviceID)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().IntVar(&tokenUserID, "user", 0, "идентификатор пользователя")
	tokenIssueCmd.Flags().StringVar(&tokenDeviceID, "device", "", "идентификатор устройства")
	_ = tokenIssueCmd.MarkFlagRequired("user")
	_ = tokenIssueCmd.MarkFlagRequired("device")
	tokenCmd.AddCommand(tokenIssueCmd)
}
