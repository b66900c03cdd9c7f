package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"healthsync/internal/domain/sync"

	"github.com/fatih/color"
)

const timeLayout = "2006-01-02 15:04:05"

func statusColor(s sync.Status) string {
	switch s {
	case sync.StatusCompleted:
		return color.GreenString(string(s))
	case sync.StatusPartial, sync.StatusInProgress, sync.StatusInitiated:
		return color.YellowString(string(s))
	default:
		return color.RedString(string(s))
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func printSessions(w io.Writer, sessions []*sync.Session) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tТип\tСтатус\tНачало\tЗаписей\tОшибок\tКонфликтов\t\n")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%d\t\n",
			s.ID,
			s.SyncType,
			statusColor(s.Status),
			s.StartedAt.Local().Format(timeLayout),
			s.Progress.Processed,
			s.Progress.Total,
			len(s.Errors),
			len(s.Conflicts),
		)
	}
	tw.Flush()
}

func printPagination(w io.Writer, p sync.Pagination) {
	fmt.Fprintf(w, "\nСтраница %d из %d, всего %d\n", p.Page, p.Pages, p.Total)
}
