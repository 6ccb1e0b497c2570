package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flo-mic/stackgen/internal/descriptor"
	"github.com/flo-mic/stackgen/internal/naming"
)

func newHostsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hosts",
		Short: "Print the public host names of a project",
		Long: `Print every public host name, sorted, one per line. Each needs a DNS record
pointing at the server before the certbot service can obtain a certificate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			d, err := descriptor.Load(p.engine.FS, descriptor.FileName)
			if err != nil {
				return err
			}
			hosts, err := naming.DeriveHosts(d)
			if err != nil {
				return err
			}
			for _, h := range hosts.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), h)
			}
			return nil
		},
	}
}
