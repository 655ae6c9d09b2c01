package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"flowsniffer/pkg/api"
)

func newTargetsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List page targets exposed by the DevTools endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			svc := api.NewService(ctx.logger())
			id, err := svc.StartSession(cfg.SessionConfig())
			if err != nil {
				return err
			}
			defer svc.StopSession(id)

			targets, err := svc.ListTargets(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(targets) == 0 {
				fmt.Fprintln(out, "No page targets")
				return nil
			}
			rows := make([][]string, 0, len(targets))
			for _, t := range targets {
				rows = append(rows, []string{string(t.ID), t.Title, t.URL})
			}
			fmt.Fprint(out, renderTable([]string{"ID", "Title", "URL"}, rows))
			return nil
		},
	}
}
