package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"flowsniffer/internal/display"
	"flowsniffer/pkg/api"
	"flowsniffer/pkg/model"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Attach to a page and print the download command as it changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log := ctx.logger()

			sink, err := display.New(cfg.Output.Format, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			pubs := []api.Publisher{sink}
			if cfg.Sqlite.Enabled {
				journal, err := ctx.openJournal(log)
				if err != nil {
					return err
				}
				defer journal.Close()
				pubs = append(pubs, journal)
			}

			svc := api.NewService(log, pubs...)
			id, err := svc.StartSession(cfg.SessionConfig())
			if err != nil {
				return err
			}
			defer svc.StopSession(id)

			if err := svc.SetFilter(id, cfg.IgnoreRules()); err != nil {
				return err
			}
			if target == "" {
				target = cfg.DevTools.Target
			}
			if err := svc.AttachTarget(id, model.TargetID(target)); err != nil {
				return fmt.Errorf("attach target: %w", err)
			}
			log.Info("开始监听", "session", string(id), "devtools", cfg.DevTools.URL)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// 终端下回车重置会话
			if isatty.IsTerminal(os.Stdin.Fd()) {
				go resetOnEnter(runCtx, func() {
					if err := svc.ResetSession(id); err != nil {
						log.Err(err, "重置会话失败")
					}
				})
			}

			<-runCtx.Done()
			log.Info("停止监听", "session", string(id))
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "Target ID to attach (default: first page)")
	return cmd
}

func resetOnEnter(ctx context.Context, reset func()) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		reset()
	}
}
