package cmd

import (
	"fmt"
	"time"

	"healthsync/internal/domain/sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	statusPage     int
	statusLimit    int
	statusFrom     string
	statusTo       string
	statusFilter   string
	statusSyncType string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "История сессий синхронизации устройства",
	RunE: func(cmd *cobra.Command, _ []string) error {
		q := sync.StatusQuery{
			Page:     statusPage,
			Limit:    statusLimit,
			Status:   sync.Status(statusFilter),
			SyncType: sync.SyncType(statusSyncType),
		}
		var err error
		if q.From, err = parseFlagTime("from", statusFrom); err != nil {
			return err
		}
		if q.To, err = parseFlagTime("to", statusTo); err != nil {
			return err
		}

		resp, err := api.Status(cmd.Context(), q)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, resp)
		}

		if resp.LastSync != nil {
			ls := resp.LastSync
			fmt.Fprintf(out, "Последняя синхронизация: %s %s, %d%% за %dms\n\n",
				color.CyanString(ls.SyncID), statusColor(ls.Status), ls.Percentage, ls.DurationMs)
		}
		if len(resp.Sessions) == 0 {
			fmt.Fprintln(out, "Сессии не найдены")
			return nil
		}
		printSessions(out, resp.Sessions)
		printPagination(out, resp.Pagination)
		return nil
	},
}

func parseFlagTime(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("--%s: ожидается RFC3339: %w", name, err)
	}
	return &t, nil
}

func init() {
	statusCmd.Flags().IntVar(&statusPage, "page", 1, "номер страницы")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "сессий на странице")
	statusCmd.Flags().StringVar(&statusFrom, "from", "", "начало периода (RFC3339)")
	statusCmd.Flags().StringVar(&statusTo, "to", "", "конец периода (RFC3339)")
	statusCmd.Flags().StringVar(&statusFilter, "status", "", "фильтр по статусу")
	statusCmd.Flags().StringVar(&statusSyncType, "type", "", "фильтр по типу синхронизации")
}
