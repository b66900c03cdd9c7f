package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"healthsync/internal/domain/sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	conflictsPage  int
	conflictsLimit int
	mergedFile     string
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Неразрешенные конфликты устройства",
}

var conflictsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Показать конфликты, ожидающие решения",
	RunE: func(cmd *cobra.Command, _ []string) error {
		resp, err := api.Conflicts(cmd.Context(), conflictsPage, conflictsLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, resp)
		}
		if len(resp.Conflicts) == 0 {
			fmt.Fprintln(out, color.GreenString("Конфликтов нет"))
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "Сессия\tЗапись\tТип данных\tПричина\tВремя\t\n")
		for _, c := range resp.Conflicts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
				c.SyncID, c.ItemID, c.DataType,
				color.YellowString(string(c.ConflictType)),
				formatTime(&c.SyncTimestamp))
		}
		tw.Flush()
		printPagination(out, resp.Pagination)
		return nil
	},
}

var conflictsResolveCmd = &cobra.Command{
	Use:   "resolve <sync-id> <item-id> <server_wins|client_wins|merge|skip>",
	Short: "Принять решение по конфликту",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := sync.ResolveConflictRequest{
			SyncID:         args[0],
			ConflictItemID: args[1],
			Resolution:     sync.Resolution(args[2]),
		}

		if req.Resolution == sync.ResolutionMerge {
			if mergedFile == "" {
				return errors.New("для merge нужен --merged с итоговой версией записи")
			}
			data, err := os.ReadFile(mergedFile)
			if err != nil {
				return fmt.Errorf("ошибка чтения %s: %w", mergedFile, err)
			}
			if !json.Valid(data) {
				return fmt.Errorf("%s не содержит корректный JSON", mergedFile)
			}
			req.MergedData = data
		}

		resp, err := api.Resolve(cmd.Context(), req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, resp)
		}
		fmt.Fprintf(out, "%s конфликт %s в сессии %s: %s\n",
			color.GreenString("Разрешен"), resp.ItemID, resp.SyncID, resp.Resolution)
		return nil
	},
}

func init() {
	conflictsListCmd.Flags().IntVar(&conflictsPage, "page", 1, "номер страницы")
	conflictsListCmd.Flags().IntVar(&conflictsLimit, "limit", 20, "конфликтов на странице")
	conflictsResolveCmd.Flags().StringVar(&mergedFile, "merged", "", "JSON-файл с объединенной версией")
	conflictsCmd.AddCommand(conflictsListCmd, conflictsResolveCmd)
}
