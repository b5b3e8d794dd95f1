package main

import (
	"context"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/ragchat-go/internal/config"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr, inbox string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, log, err := flags.start(ctx, func(cfg *config.Config) {
				if addr != "" {
					cfg.Server.Addr = addr
				}
				if inbox != "" {
					cfg.Inbox.Dir = inbox
				}
			})
			if err != nil {
				return err
			}
			defer shutdown(a, log)

			p := pool.New().WithContext(ctx).WithCancelOnError()
			p.Go(func(ctx context.Context) error {
				return a.Server().Start(ctx)
			})
			if a.Config.Inbox.Dir != "" {
				p.Go(func(ctx context.Context) error {
					return a.RunInbox(ctx, "")
				})
			}
			return p.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&inbox, "inbox", "", "directory watched for documents to open sessions from")
	return cmd
}
