package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flo-mic/stackgen/internal/descriptor"
	"github.com/flo-mic/stackgen/internal/reconcile"
)

// loadProject opens the project and reads its descriptor. A descriptor rebuilt
// from directories is completed interactively before it is used.
func loadProject(cmd *cobra.Command) (*project, descriptor.Descriptor, error) {
	p, err := openProject(cmd)
	if err != nil {
		return nil, descriptor.Descriptor{}, err
	}
	d, src, err := reconcile.LoadOrRecover(p.engine.FS, p.name())
	if err != nil {
		return nil, descriptor.Descriptor{}, err
	}
	switch src {
	case reconcile.FromLegacy:
		fmt.Fprintf(cmd.OutOrStdout(), "[stackgen] Imported %s; it will be replaced by %s\n", descriptor.LegacyFileName, descriptor.FileName)
	case reconcile.FromDirectories:
		fmt.Fprintf(cmd.OutOrStdout(), "[stackgen] No usable %s, rebuilt the service list from %s/ and %s/\n",
			descriptor.FileName, descriptor.BackendRoot, descriptor.FrontendRoot)
		if err := promptRecovered(&d, p.defaults); err != nil {
			return nil, descriptor.Descriptor{}, err
		}
	}
	return p, d, nil
}

func newExtendCommand() *cobra.Command {
	var (
		backends  []string
		frontends []string
		enable    []string
	)
	cmd := &cobra.Command{
		Use:   "extend",
		Short: "Add backends, frontends or data stores to a project",
		Long: `Add services to an existing project. Existing files are left alone; only new
services are scaffolded and the shared files are regenerated.

Without flags the additions are asked for interactively.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, d, err := loadProject(cmd)
			if err != nil {
				return err
			}

			var x edits
			x.AddBackends = backends
			if x.AddFrontends, err = parseFrontends(frontends); err != nil {
				return err
			}
			if x.Enable, err = parseStores(enable); err != nil {
				return err
			}
			if x.empty() {
				if err := promptExtend(d, &x); err != nil {
					return err
				}
			}

			if d, err = x.apply(d); err != nil {
				return err
			}
			res, err := p.engine.Apply(commandContext(cmd), d)
			if err != nil {
				return err
			}
			return finish(cmd, res)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&backends, "backend", nil, "backend service to add (repeatable)")
	f.StringSliceVar(&frontends, "frontend", nil, "frontend app to add as name[:kind] (repeatable)")
	f.StringSliceVar(&enable, "enable", nil, "data store to enable: postgres, mongo, redis (repeatable)")
	return cmd
}
