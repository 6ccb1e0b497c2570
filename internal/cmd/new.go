package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flo-mic/stackgen/internal/config"
	"github.com/flo-mic/stackgen/internal/descriptor"
)

func newNewCommand() *cobra.Command {
	var (
		a         newAnswers
		backends  []string
		frontends []string
		stores    []string
	)
	cmd := &cobra.Command{
		Use:   "new [dir]",
		Short: "Create a new project",
		Long: `Create a new project in dir (default: the --dir directory).

Without --domain and --email the missing answers are asked for interactively.
Frontends are given as name or name:kind, where kind is vue (default) or nuxt.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				projectDir = args[0]
			}
			if err := os.MkdirAll(projectDir, 0755); err != nil {
				return fmt.Errorf("creating project directory: %w", err)
			}
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			if _, err := p.engine.FS.Stat(descriptor.FileName); err == nil {
				return fmt.Errorf("%s already exists in %s; use extend or edit", descriptor.FileName, p.dir)
			}

			if a.Project == "" {
				a.Project = p.name()
			}
			a.Backends = backends
			if a.Frontends, err = parseFrontends(frontends); err != nil {
				return err
			}
			if a.Stores, err = parseStores(stores); err != nil {
				return err
			}

			if a.Domain == "" || a.Email == "" {
				if a.Domain == "" {
					a.Domain = p.defaults.Domain
				}
				if a.Email == "" {
					a.Email = p.defaults.Email
				}
				if !cmd.Flags().Changed("staging") {
					a.Staging = p.defaults.Staging
				}
				if err := promptNew(&a); err != nil {
					return err
				}
			}

			d, err := buildDescriptor(a)
			if err != nil {
				return err
			}
			logger.Debug("creating project", zap.String("project", d.Project), zap.Strings("backends", d.Backends))
			res, err := p.engine.Apply(commandContext(cmd), d)
			if err != nil {
				return err
			}
			rememberSite(p.defaults, d)
			return finish(cmd, res)
		},
	}
	f := cmd.Flags()
	f.StringVar(&a.Project, "project", "", "project name (default: directory name)")
	f.StringVar(&a.Domain, "domain", "", "public domain")
	f.StringVar(&a.Email, "email", "", "Let's Encrypt account email")
	f.BoolVar(&a.Staging, "staging", false, "use the Let's Encrypt staging CA")
	f.StringSliceVar(&backends, "backend", nil, "backend service (repeatable)")
	f.StringSliceVar(&frontends, "frontend", nil, "frontend app as name[:kind] (repeatable)")
	f.StringSliceVar(&stores, "store", nil, "data store to enable: postgres, mongo, redis (repeatable)")
	return cmd
}

// rememberSite stores the domain and email of the first project as defaults
// for the next one.
func rememberSite(defaults *config.Defaults, d descriptor.Descriptor) {
	if defaults.Domain != "" || defaults.Email != "" {
		return
	}
	defaults.Domain, defaults.Email = d.Domain, d.Email
	if err := config.SaveDefaults(defaults); err != nil {
		logger.Warn("could not save defaults", zap.Error(err))
	}
}
