package cmd

import (
	"github.com/spf13/cobra"

	"github.com/flo-mic/stackgen/internal/reconcile"
)

func newEditCommand() *cobra.Command {
	var (
		renameBackends  []string
		renameFrontends []string
		enable          []string
		disable         []string
		domain, email   string
		staging         bool
		x               edits
	)
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Rename or remove services, toggle data stores, change the domain",
		Long: `Change an existing project. Renames move the service directory and update
every generated file; removals drop the service from the generated files but
keep its directory on disk.

Without flags one change is asked for interactively.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, d, err := loadProject(cmd)
			if err != nil {
				return err
			}

			if x.RenameBackends, err = parseRenames(renameBackends); err != nil {
				return err
			}
			if x.RenameFrontends, err = parseRenames(renameFrontends); err != nil {
				return err
			}
			if x.Enable, err = parseStores(enable); err != nil {
				return err
			}
			if x.Disable, err = parseStores(disable); err != nil {
				return err
			}
			if cmd.Flags().Changed("domain") {
				x.Domain = &domain
			}
			if cmd.Flags().Changed("email") {
				x.Email = &email
			}
			if cmd.Flags().Changed("staging") {
				x.Staging = &staging
			}
			if x.empty() {
				if err := promptEdit(d, &x); err != nil {
					return err
				}
			}

			ctx := commandContext(cmd)
			var res reconcile.Result
			ran := false
			for _, r := range x.RenameBackends {
				if res, err = p.engine.RenameBackend(ctx, d, r[0], r[1]); err != nil {
					return err
				}
				d, ran = res.Descriptor, true
			}
			for _, r := range x.RenameFrontends {
				if res, err = p.engine.RenameFrontend(ctx, d, r[0], r[1]); err != nil {
					return err
				}
				d, ran = res.Descriptor, true
			}

			x.RenameBackends, x.RenameFrontends = nil, nil
			if !x.empty() || !ran {
				if d, err = x.apply(d); err != nil {
					return err
				}
				if res, err = p.engine.Apply(ctx, d); err != nil {
					return err
				}
			}
			return finish(cmd, res)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&renameBackends, "rename-backend", nil, "rename a backend, as old=new (repeatable)")
	f.StringSliceVar(&renameFrontends, "rename-frontend", nil, "rename a frontend, as old=new (repeatable)")
	f.StringSliceVar(&x.RemoveBackends, "remove-backend", nil, "backend to remove (repeatable)")
	f.StringSliceVar(&x.RemoveFrontends, "remove-frontend", nil, "frontend to remove (repeatable)")
	f.StringSliceVar(&enable, "enable", nil, "data store to enable (repeatable)")
	f.StringSliceVar(&disable, "disable", nil, "data store to disable (repeatable)")
	f.StringVar(&domain, "domain", "", "new public domain")
	f.StringVar(&email, "email", "", "new Let's Encrypt account email")
	f.BoolVar(&staging, "staging", false, "use the Let's Encrypt staging CA")
	return cmd
}
