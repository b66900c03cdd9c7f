package cmd

import (
	"fmt"
	"os"

	"healthsync/internal/domain/sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	downloadTypes []string
	downloadSince string
	downloadOut   string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Получить изменения с сервера",
	RunE: func(cmd *cobra.Command, _ []string) error {
		req := sync.DownloadRequest{
			SyncType:  sync.SyncTypeDownload,
			Operation: sync.OperationIncremental,
		}
		for _, t := range downloadTypes {
			req.DataTypes = append(req.DataTypes, sync.DataType(t))
		}

		since, err := parseFlagTime("since", downloadSince)
		if err != nil {
			return err
		}
		req.LastSyncTimestamp = since
		if since == nil {
			req.Operation = sync.OperationFull
		}

		resp, err := api.Download(cmd.Context(), req)
		if err != nil {
			return err
		}

		if downloadOut != "" {
			f, err := os.Create(downloadOut)
			if err != nil {
				return fmt.Errorf("ошибка создания %s: %w", downloadOut, err)
			}
			defer f.Close()
			if err := printJSON(f, resp); err != nil {
				return fmt.Errorf("ошибка записи %s: %w", downloadOut, err)
			}
		}

		out := cmd.OutOrStdout()
		if jsonOutput && downloadOut == "" {
			return printJSON(out, resp)
		}

		fmt.Fprintf(out, "Сессия %s: %s, записей %d\n",
			color.CyanString(resp.SyncID), statusColor(resp.Status), resp.Summary.TotalItems)
		fmt.Fprintf(out, "Следующий водяной знак: %s\n", resp.Timestamp.Format("2006-01-02T15:04:05.999999999Z07:00"))
		if resp.Summary.HasMore {
			fmt.Fprintln(out, color.YellowString("Выборка обрезана, повторите download с --since равным водяному знаку"))
		}
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringSliceVarP(&downloadTypes, "types", "t", []string{"activities", "diagnoses"}, "типы данных")
	downloadCmd.Flags().StringVar(&downloadSince, "since", "", "водяной знак прошлой синхронизации (RFC3339)")
	downloadCmd.Flags().StringVarP(&downloadOut, "out", "o", "", "сохранить ответ в файл")
}
