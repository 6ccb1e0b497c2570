package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flo-mic/stackgen/internal/descriptor"
	"github.com/flo-mic/stackgen/internal/reconcile"
)

func newRenderCommand() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Regenerate every file from the descriptor",
		Long: `Regenerate the compose files, proxy configuration and TLS bootstrap from
stack.yaml. Edit stack.yaml by hand and run render to apply the change.

With --watch, render keeps running and applies every saved change until
interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, d, err := loadProject(cmd)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			res, err := p.engine.Apply(ctx, d)
			if err != nil {
				return err
			}
			if !watch {
				return finish(cmd, res)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "[stackgen] Watching %s, press Ctrl+C to stop\n", descriptor.FileName)
			return p.engine.Watch(ctx, reconcile.DefaultDebounce, func(ctx context.Context) error {
				d, err := descriptor.Load(p.engine.FS, descriptor.FileName)
				if err != nil {
					return err
				}
				_, err = p.engine.Apply(ctx, d)
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep running and re-render when stack.yaml changes")
	return cmd
}
