package scaffold

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/flo-mic/stackgen/internal/config"
	"github.com/flo-mic/stackgen/internal/descriptor"
)

// ErrScaffoldFailed is returned when no generator attempt produced a frontend app.
var ErrScaffoldFailed = errors.New("frontend scaffolding failed")

// Generators per kind, tried in order. Each runs inside the empty app directory.
var generators = map[descriptor.Kind][]string{
	descriptor.KindSPA: {
		"npx --yes create-vue@latest .",
		"npm init vue@latest -y",
		"npm i -g create-vue@latest && create-vue . -- --yes",
	},
	descriptor.KindMeta: {
		"npx --yes nuxi@latest init .",
		"npm i -g nuxi@latest && nuxi init .",
	},
}

// packageManagers enable the local attempts when any of them is on PATH.
var packageManagers = []string{"npm", "pnpm", "yarn"}

// lookPath and runShell are replaced in tests.
var (
	lookPath = exec.LookPath
	runShell = func(ctx context.Context, dir, script string, out io.Writer) error {
		c := exec.CommandContext(ctx, "/bin/sh", "-c", script)
		c.Dir = dir
		c.Stdout = out
		c.Stderr = out
		return c.Run()
	}
)

// Node runs framework generators for frontend apps, locally when a package
// manager is installed and inside a throwaway Node container otherwise.
type Node struct {
	// Image is the container image of the fallback. config.DefaultNodeImage when empty.
	Image string
	// Out receives the generator output.
	Out io.Writer
	Log *zap.Logger
}

// Scaffold generates a kind app into dir, which must be an existing empty
// directory on the host. Attempts run in order until one succeeds; when all
// fail, their errors are returned together wrapped in ErrScaffoldFailed.
func (n Node) Scaffold(ctx context.Context, dir string, kind descriptor.Kind) error {
	gens, ok := generators[kind]
	if !ok {
		return fmt.Errorf("%w: unknown frontend kind %q", ErrScaffoldFailed, kind)
	}
	out := n.Out
	if out == nil {
		out = io.Discard
	}
	log := n.Log
	if log == nil {
		log = zap.NewNop()
	}

	attempts := n.attempts(dir, gens)
	if len(attempts) == 0 {
		return fmt.Errorf("%w: neither a package manager (%s) nor docker is installed",
			ErrScaffoldFailed, strings.Join(packageManagers, ", "))
	}

	var errs error
	for _, script := range attempts {
		log.Debug("running frontend generator", zap.String("dir", dir), zap.String("script", script))
		err := runShell(ctx, dir, script, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("frontend generator failed", zap.String("script", script), zap.Error(err))
		errs = multierr.Append(errs, fmt.Errorf("%q: %w", script, err))
	}
	return fmt.Errorf("%w: %w", ErrScaffoldFailed, errs)
}

func (n Node) attempts(dir string, gens []string) []string {
	var scripts []string
	if hasPackageManager() {
		for _, g := range gens {
			scripts = append(scripts, g+" && npm install")
		}
	}
	if _, err := lookPath("docker"); err == nil {
		image := n.Image
		if image == "" {
			image = config.DefaultNodeImage
		}
		for _, g := range gens {
			inner := "set -e; npm config set fund false; npm config set audit false; " + g + " && npm install"
			scripts = append(scripts, fmt.Sprintf("docker run --rm -v %s:/app -w /app %s sh -lc %s",
				shellQuote(dir), shellQuote(image), shellQuote(inner)))
		}
	}
	return scripts
}

func hasPackageManager() bool {
	for _, pm := range packageManagers {
		if _, err := lookPath(pm); err == nil {
			return true
		}
	}
	return false
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
