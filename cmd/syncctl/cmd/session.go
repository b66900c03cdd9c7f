package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session <sync-id>",
	Short: "Подробности сессии синхронизации",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := api.Session(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, s)
		}

		fmt.Fprintf(out, "Сессия:     %s\n", color.CyanString(s.ID))
		fmt.Fprintf(out, "Устройство: %s\n", s.DeviceID)
		fmt.Fprintf(out, "Тип:        %s / %s\n", s.SyncType, s.Operation)
		fmt.Fprintf(out, "Статус:     %s\n", statusColor(s.Status))
		fmt.Fprintf(out, "Начало:     %s\n", formatTime(&s.StartedAt))
		fmt.Fprintf(out, "Окончание:  %s\n", formatTime(s.CompletedAt))
		fmt.Fprintf(out, "Прогресс:   %d/%d (%d%%), успешно %d, ошибок %d, пропущено %d\n",
			s.Progress.Processed, s.Progress.Total, s.Progress.Percentage(),
			s.Progress.Successful, s.Progress.Failed, s.Progress.Skipped)

		if s.Retry.NextRetryAt != nil {
			fmt.Fprintf(out, "Повтор:     попытка %d, не раньше %s\n", s.Retry.AttemptCount, formatTime(s.Retry.NextRetryAt))
		}

		if len(s.Errors) > 0 {
			fmt.Fprintln(out, color.RedString("\nОшибки:"))
			for _, e := range s.Errors {
				fmt.Fprintf(out, "  • [%s] %s %s: %s\n", e.Code, e.DataType, e.ItemID, e.Message)
			}
		}
		if len(s.Conflicts) > 0 {
			fmt.Fprintln(out, color.YellowString("\nКонфликты:"))
			for _, c := range s.Conflicts {
				fmt.Fprintf(out, "  • %s %s: %s -> %s\n", c.DataType, c.ItemID, c.ConflictType, c.Resolution)
			}
		}
		return nil
	},
}
