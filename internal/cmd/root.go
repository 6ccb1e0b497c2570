// Package cmd implements the stackgen command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/flo-mic/stackgen/internal/compose"
	"github.com/flo-mic/stackgen/internal/config"
	"github.com/flo-mic/stackgen/internal/reconcile"
	"github.com/flo-mic/stackgen/internal/scaffold"
)

var (
	projectDir string
	verbose    bool
	logger     = zap.NewNop()
)

// NewRootCommand builds the command tree. Progress goes to out, generator
// output and diagnostics to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "stackgen",
		Short: "Generate and maintain a multi-service docker compose project",
		Long: `stackgen keeps a project of Python backends, Vue/Nuxt frontends and optional
data stores in sync with its descriptor (stack.yaml). Every command regenerates
the development and production compose files, the reverse proxy configuration
and the TLS bootstrap from that descriptor.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := zap.NewAtomicLevelAt(zapcore.WarnLevel)
			if verbose {
				level.SetLevel(zapcore.DebugLevel)
			}
			cfg := zap.NewProductionConfig()
			cfg.Level = level
			cfg.Encoding = "console"
			cfg.OutputPaths = []string{"stderr"}
			l, err := cfg.Build()
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVarP(&projectDir, "dir", "C", ".", "project directory")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(
		newNewCommand(),
		newExtendCommand(),
		newEditCommand(),
		newRenderCommand(),
		newHostsCommand(),
	)
	return root
}

// project is an opened project directory with its engine.
type project struct {
	dir      string
	engine   *reconcile.Engine
	defaults *config.Defaults
}

func openProject(cmd *cobra.Command) (*project, error) {
	dir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, err
	}
	defaults, err := config.LoadDefaults()
	if err != nil {
		return nil, err
	}
	return &project{
		dir:      dir,
		defaults: defaults,
		engine: &reconcile.Engine{
			FS:   osfs.New(dir, osfs.WithBoundOS()),
			Root: dir,
			Scaffolder: scaffold.Node{
				Image: defaults.NodeImage,
				Out:   cmd.ErrOrStderr(),
				Log:   logger,
			},
			Compose: compose.Options{TimeZone: defaults.TimeZone},
			Out:     cmd.OutOrStdout(),
			Log:     logger,
		},
	}, nil
}

func (p *project) name() string {
	return filepath.Base(p.dir)
}

// finish prints the summary of a successful pass.
func finish(cmd *cobra.Command, res reconcile.Result) error {
	printSummary(cmd.OutOrStdout(), res)
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
