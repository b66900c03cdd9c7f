package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"healthsync/internal/domain/sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var uploadFile string

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Отправить пакет записей на сервер",
	Long: `Отправляет пакет записей из JSON-файла. Файл повторяет тело
POST /api/sync/upload: dataTypes, data и необязательные deviceInfo/networkInfo.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if uploadFile == "" {
			return errors.New("укажите файл пакета через --file")
		}
		data, err := os.ReadFile(uploadFile)
		if err != nil {
			return fmt.Errorf("ошибка чтения %s: %w", uploadFile, err)
		}

		var req sync.UploadRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("ошибка разбора %s: %w", uploadFile, err)
		}

		resp, err := api.Upload(cmd.Context(), req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, resp)
		}

		fmt.Fprintf(out, "Сессия %s: %s\n", color.CyanString(resp.SyncID), statusColor(resp.Status))
		fmt.Fprintf(out, "Успешно: %d, ошибок: %d, конфликтов: %d\n",
			resp.Results.Successful, resp.Results.Failed, resp.Results.Conflicts)
		for _, f := range resp.Details.Failed {
			fmt.Fprintf(out, "  %s %s %s: %s\n", color.RedString("✗"), f.DataType, f.ItemID, f.Error)
		}
		for _, c := range resp.Details.Conflicts {
			fmt.Fprintf(out, "  %s %s %s: %s\n", color.YellowString("!"), c.DataType, c.ItemID, c.Reason)
		}
		if resp.Results.Conflicts > 0 {
			fmt.Fprintln(out, "Используйте 'syncctl conflicts list' для просмотра")
		}
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadFile, "file", "f", "", "JSON-файл пакета")
}
