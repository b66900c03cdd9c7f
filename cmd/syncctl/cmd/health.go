package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Проверить доступность сервера",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := api.HealthCheck(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("OK"), cfg.BaseURL())
		return nil
	},
}
