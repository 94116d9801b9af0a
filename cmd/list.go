package cmd

import (
	"context"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"usher-schedule/store"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		sortBy   string
		upcoming bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print today's showtimes as a table",
		Long:  `Fetch the schedule once and print it, sorted and optionally limited to showtimes that have not ended.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := store.ParseSortMode(sortBy)
			if err != nil {
				return err
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.SetSortMode(mode); err != nil {
				return err
			}
			a.store.SetUpcomingOnly(upcoming)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := a.store.Refresh(ctx, a.fetcher); err != nil {
				return err
			}

			renderTable(cmd.OutOrStdout(), a.store, time.Now())
			return nil
		},
	}

	cmd.Flags().StringVar(&sortBy, "sort", "start", "sort by start, end or title")
	cmd.Flags().BoolVar(&upcoming, "upcoming", false, "only show showtimes that have not ended")
	return cmd
}

func renderTable(out io.Writer, st *store.ShowtimeStore, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Title", "Start", "End", "Auditorium", "Duration", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMax: 28},
	})

	for showtime := range st.Visible(now) {
		t.AppendRow(table.Row{
			showtime.Title,
			showtime.StartString(),
			showtime.EndString(),
			showtime.AuditoriumLabel(),
			showtime.Duration(),
			showtime.TimeStatus(now),
		})
	}
	t.Render()
}
