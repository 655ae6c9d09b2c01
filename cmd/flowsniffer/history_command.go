package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"flowsniffer/internal/display"
	"flowsniffer/pkg/model"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var sessionID string
	var full bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent captures from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			journal, err := ctx.openJournal(ctx.logger())
			if err != nil {
				return err
			}
			defer journal.Close()

			rows, err := journal.Latest(cmd.Context(), sessionID, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No captures recorded")
				return nil
			}

			if !full {
				table := make([][]string, 0, len(rows))
				for _, r := range rows {
					table = append(table, []string{
						r.CreatedAt.Local().Format(time.DateTime),
						shortID(r.SessionID),
						r.Field,
						r.Command,
					})
				}
				fmt.Fprint(out, renderTable([]string{"Time", "Session", "Field", "Command"}, table))
				return nil
			}

			sink, err := display.New(cfg.Output.Format, out)
			if err != nil {
				return err
			}
			// 按时间顺序输出
			for i := len(rows) - 1; i >= 0; i-- {
				r := rows[i]
				sink.Publish(model.Update{
					Session:      model.SessionID(r.SessionID),
					Target:       model.TargetID(r.TargetID),
					Field:        r.Field,
					PrimaryURL:   r.PrimaryURL,
					SecondaryURL: r.SecondaryURL,
					Key:          r.Key,
					IV:           r.IV,
					Referer:      r.Referer,
					Command:      r.Command,
					Timestamp:    r.CreatedAt.UnixMilli(),
				})
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of rows to show")
	cmd.Flags().StringVar(&sessionID, "session", "", "Only show captures from this session")
	cmd.Flags().BoolVar(&full, "full", false, "Print every field in the configured output format")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
