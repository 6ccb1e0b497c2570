// Package reconcile applies descriptor edits to a project and regenerates
// every derived artifact in one pass.
//
// A pass validates the descriptor, allocates ports and hosts, scaffolds
// services that have no directory yet, renders both compose documents and the
// proxy configuration, and only then persists the descriptor. When any
// artifact cannot be written the pass is rolled back and the stored descriptor
// is left as it was.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"

	"github.com/flo-mic/stackgen/internal/artifact"
	"github.com/flo-mic/stackgen/internal/compose"
	"github.com/flo-mic/stackgen/internal/delta"
	"github.com/flo-mic/stackgen/internal/descriptor"
	"github.com/flo-mic/stackgen/internal/naming"
	"github.com/flo-mic/stackgen/internal/proxy"
	"github.com/flo-mic/stackgen/internal/scaffold"
)

// Scaffolder generates a frontend app into an empty host directory.
type Scaffolder interface {
	Scaffold(ctx context.Context, dir string, kind descriptor.Kind) error
}

// PackageManifest marks a frontend app directory as already scaffolded.
const PackageManifest = "package.json"

// Engine runs reconciliation passes over one project.
type Engine struct {
	// FS is rooted at the project directory.
	FS billy.Filesystem
	// Root is the host path of FS. Frontend generators run there.
	Root       string
	Scaffolder Scaffolder
	Compose    compose.Options

	// Out receives progress lines for the user.
	Out io.Writer
	Log *zap.Logger
}

// Result is the outcome of a successful pass.
type Result struct {
	Descriptor descriptor.Descriptor
	Allocation naming.Allocation
	Hosts      naming.HostSet
	Plan       Plan
	Changes    []artifact.Change
}

func (e *Engine) out() io.Writer {
	if e.Out == nil {
		return io.Discard
	}
	return e.Out
}

func (e *Engine) log() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

// AddBackend adds a backend service and applies d.
func (e *Engine) AddBackend(ctx context.Context, d descriptor.Descriptor, name string) (Result, error) {
	next, err := d.AddBackend(name)
	if err != nil {
		return Result{}, err
	}
	return e.Apply(ctx, next)
}

// AddFrontend adds a frontend app and applies d. The app is generated during the pass.
func (e *Engine) AddFrontend(ctx context.Context, d descriptor.Descriptor, name string, kind descriptor.Kind) (Result, error) {
	next, err := d.AddFrontend(name, kind)
	if err != nil {
		return Result{}, err
	}
	return e.Apply(ctx, next)
}

// RemoveBackend stops referencing a backend. Its directory is kept.
func (e *Engine) RemoveBackend(ctx context.Context, d descriptor.Descriptor, name string) (Result, error) {
	next, err := d.RemoveBackend(name)
	if err != nil {
		return Result{}, err
	}
	return e.Apply(ctx, next)
}

// RemoveFrontend stops referencing a frontend. Its directory is kept.
func (e *Engine) RemoveFrontend(ctx context.Context, d descriptor.Descriptor, name string) (Result, error) {
	next, err := d.RemoveFrontend(name)
	if err != nil {
		return Result{}, err
	}
	return e.Apply(ctx, next)
}

// SetDataStore toggles a store and applies d.
func (e *Engine) SetDataStore(ctx context.Context, d descriptor.Descriptor, store descriptor.DataStore, enabled bool) (Result, error) {
	next, err := d.SetDataStore(store, enabled)
	if err != nil {
		return Result{}, err
	}
	return e.Apply(ctx, next)
}

// RenameBackend moves a backend directory, points its default response at the
// new name and applies d. A failed pass moves the directory back.
func (e *Engine) RenameBackend(ctx context.Context, d descriptor.Descriptor, old, name string) (Result, error) {
	next, err := d.RenameBackend(old, name)
	if err != nil {
		return Result{}, err
	}
	from, to := path.Join(descriptor.BackendRoot, old), path.Join(descriptor.BackendRoot, name)

	var extra []artifact.File
	moved, err := e.moveDir(from, to)
	if err != nil {
		return Result{}, err
	}
	if moved {
		main := path.Join(to, scaffold.MainFile)
		src, err := util.ReadFile(e.FS, main)
		switch {
		case err == nil:
			extra = append(extra, artifact.File{Path: main, Data: scaffold.RewriteDefaultResponse(src, name)})
		case !errors.Is(err, os.ErrNotExist):
			e.undoMove(to, from)
			return Result{}, fmt.Errorf("reading %s: %w", main, err)
		}
	}

	res, err := e.apply(ctx, next, extra)
	if err != nil && moved {
		e.undoMove(to, from)
	}
	return res, err
}

// RenameFrontend moves a frontend directory and applies d. A failed pass
// moves the directory back.
func (e *Engine) RenameFrontend(ctx context.Context, d descriptor.Descriptor, old, name string) (Result, error) {
	next, err := d.RenameFrontend(old, name)
	if err != nil {
		return Result{}, err
	}
	from, to := path.Join(descriptor.FrontendRoot, old), path.Join(descriptor.FrontendRoot, name)

	moved, err := e.moveDir(from, to)
	if err != nil {
		return Result{}, err
	}
	res, err := e.apply(ctx, next, nil)
	if err != nil && moved {
		e.undoMove(to, from)
	}
	return res, err
}

// moveDir renames from to to. A missing source is not an error: the pass
// scaffolds the new name instead. An existing destination is a collision.
func (e *Engine) moveDir(from, to string) (bool, error) {
	if _, err := e.FS.Stat(to); err == nil {
		return false, fmt.Errorf("%w: directory %s already exists", descriptor.ErrNameCollision, to)
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if _, err := e.FS.Stat(from); errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if err := e.FS.Rename(from, to); err != nil {
		return false, fmt.Errorf("moving %s to %s: %w", from, to, err)
	}
	fmt.Fprintf(e.out(), "[stackgen] Moved %s to %s\n", from, to)
	return true, nil
}

func (e *Engine) undoMove(to, from string) {
	if err := e.FS.Rename(to, from); err != nil {
		e.log().Error("could not move directory back", zap.String("from", to), zap.String("to", from), zap.Error(err))
		return
	}
	fmt.Fprintf(e.out(), "[stackgen] Restored %s\n", from)
}

// Apply regenerates every artifact for d and saves it. Applying the same
// descriptor twice leaves the project byte-identical.
func (e *Engine) Apply(ctx context.Context, d descriptor.Descriptor) (Result, error) {
	return e.apply(ctx, d, nil)
}

func (e *Engine) apply(ctx context.Context, d descriptor.Descriptor, extra []artifact.File) (Result, error) {
	d = d.EnsureSocket()
	if err := descriptor.Validate(d); err != nil {
		return Result{}, err
	}
	alloc, err := naming.Allocate(d)
	if err != nil {
		return Result{}, err
	}
	hosts, err := naming.DeriveHosts(d)
	if err != nil {
		return Result{}, err
	}

	stored, err := descriptor.Load(e.FS, descriptor.FileName)
	if err != nil && !errors.Is(err, descriptor.ErrNotFound) {
		e.log().Warn("stored descriptor unreadable, planning from scratch", zap.Error(err))
	}
	plan := Diff(stored, d)
	e.report(plan)

	scaffolded, err := e.scaffoldFrontends(ctx, d)
	if err != nil {
		return Result{}, err
	}

	files, err := e.artifacts(d, alloc, hosts)
	if err != nil {
		e.discard(scaffolded)
		return Result{}, err
	}
	files = append(files, extra...)

	w := artifact.NewWriter(e.FS, e.log())
	err = w.WriteAll(files)
	if err == nil {
		err = e.dropStaleHTTPS(w, files)
	}
	if err == nil {
		err = e.mountDirs()
	}
	if err == nil {
		err = descriptor.Save(e.FS, descriptor.FileName, d)
	}
	if err != nil {
		if rbErr := w.Rollback(); rbErr != nil {
			e.log().Error("rollback incomplete", zap.Error(rbErr))
		}
		e.discard(scaffolded)
		if !errors.Is(err, artifact.ErrPartialWrite) {
			err = fmt.Errorf("%w: %v", artifact.ErrPartialWrite, err)
		}
		return Result{}, err
	}

	changed := w.Changed()
	for _, c := range changed {
		fmt.Fprintf(e.out(), "[stackgen] %s %s\n", c.Status, c.Path)
	}
	if len(changed) == 0 {
		fmt.Fprintf(e.out(), "[stackgen] Up to date\n")
	}
	return Result{Descriptor: d, Allocation: alloc, Hosts: hosts, Plan: plan, Changes: w.Changes()}, nil
}

func (e *Engine) report(p Plan) {
	out := e.out()
	for _, b := range p.AddedBackends {
		fmt.Fprintf(out, "[stackgen] Adding backend %s\n", b)
	}
	for _, f := range p.AddedFrontends {
		fmt.Fprintf(out, "[stackgen] Adding frontend %s\n", f)
	}
	for _, b := range p.RemovedBackends {
		fmt.Fprintf(out, "[stackgen] No longer referencing backend %s (directory kept)\n", b)
	}
	for _, f := range p.RemovedFrontends {
		fmt.Fprintf(out, "[stackgen] No longer referencing frontend %s (directory kept)\n", f)
	}
	for _, s := range p.EnabledStores {
		fmt.Fprintf(out, "[stackgen] Enabling %s\n", s)
	}
	for _, s := range p.DisabledStores {
		fmt.Fprintf(out, "[stackgen] Disabling %s\n", s)
	}
}

// artifacts collects every file of a pass in write order.
func (e *Engine) artifacts(d descriptor.Descriptor, alloc naming.Allocation, hosts naming.HostSet) ([]artifact.File, error) {
	var files []artifact.File
	for _, b := range d.Backends {
		files = append(files, scaffold.Backend(b)...)
	}
	for _, f := range d.Frontends {
		files = append(files, scaffold.Frontend(f)...)
		env, err := scaffold.FrontendEnv(d, f, alloc)
		if err != nil {
			return nil, err
		}
		files = append(files, env...)
	}
	if len(d.DataStores.Enabled()) > 0 {
		files = append(files, scaffold.DBAssets()...)
	}

	dev, err := compose.RenderDevelopment(d, alloc, e.Compose)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", compose.DevelopmentFile, err)
	}
	prod, err := compose.RenderProduction(d, hosts, e.Compose)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", compose.ProductionFile, err)
	}
	files = append(files,
		artifact.File{Path: compose.DevelopmentFile, Data: dev},
		artifact.File{Path: compose.ProductionFile, Data: prod},
	)

	proxyFiles, err := proxy.Render(hosts)
	if err != nil {
		return nil, fmt.Errorf("rendering proxy configuration: %w", err)
	}
	files = append(files, proxyFiles...)

	ignore, err := util.ReadFile(e.FS, scaffold.GitignoreFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", scaffold.GitignoreFile, err)
	}
	files = append(files, artifact.File{Path: scaffold.GitignoreFile, Data: scaffold.EnsureGitignore(ignore)})
	return files, nil
}

// dropStaleHTTPS removes the promoted HTTPS config when it no longer matches
// the staged one, so nginx never starts with routes to services that are gone.
// The bootstrap script promotes the new config once the certificates of the
// current host set exist.
func (e *Engine) dropStaleHTTPS(w *artifact.Writer, files []artifact.File) error {
	i := slices.IndexFunc(files, func(f artifact.File) bool { return f.Path == proxy.StagedHTTPSConf })
	if i < 0 {
		return nil
	}
	status, err := delta.Compare(e.FS, proxy.ActiveHTTPSConf, files[i].Data)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", artifact.ErrPartialWrite, proxy.ActiveHTTPSConf, err)
	}
	if status != delta.Updated {
		return nil
	}
	e.log().Warn("active HTTPS config is stale, removing it", zap.String("path", proxy.ActiveHTTPSConf))
	fmt.Fprintf(e.out(), "[stackgen] Routes changed: HTTPS is re-enabled once certificates for the new hosts exist\n")
	return w.Remove(proxy.ActiveHTTPSConf)
}

func (e *Engine) mountDirs() error {
	for _, dir := range proxy.MountDirs {
		if err := e.FS.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// scaffoldFrontends generates the app of every frontend that has none yet. It
// returns what a failed pass has to remove again: the frontend directory when
// the pass created it, otherwise just the app directory.
func (e *Engine) scaffoldFrontends(ctx context.Context, d descriptor.Descriptor) ([]string, error) {
	var created []string
	fail := func(err error) ([]string, error) {
		e.discard(created)
		return nil, err
	}
	for _, f := range d.Frontends {
		dir := path.Join(descriptor.FrontendRoot, f.Name)
		app := path.Join(dir, scaffold.AppDir)
		if _, err := e.FS.Stat(path.Join(app, PackageManifest)); err == nil {
			continue
		}
		if e.Scaffolder == nil {
			return fail(fmt.Errorf("%w: frontend %s has no app and no generator is configured", scaffold.ErrScaffoldFailed, f.Name))
		}

		owned := app
		if _, err := e.FS.Stat(dir); errors.Is(err, os.ErrNotExist) {
			owned = dir
		}
		if err := e.emptyDir(app); err != nil {
			return fail(err)
		}
		created = append(created, owned)

		fmt.Fprintf(e.out(), "[stackgen] Generating %s app for frontend %s\n", f.Kind, f.Name)
		if err := e.Scaffolder.Scaffold(ctx, filepath.Join(e.Root, filepath.FromSlash(app)), f.Kind); err != nil {
			return fail(fmt.Errorf("frontend %s: %w", f.Name, err))
		}
	}
	return created, nil
}

// emptyDir leaves dir existing and empty. Leftovers of an earlier attempt are removed.
func (e *Engine) emptyDir(dir string) error {
	entries, err := e.FS.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if len(entries) > 0 {
		e.log().Warn("removing contents of non-empty app directory", zap.String("dir", dir), zap.Int("entries", len(entries)))
		fmt.Fprintf(e.out(), "[stackgen] WARNING: %s is not empty, removing its contents\n", dir)
		if err := util.RemoveAll(e.FS, dir); err != nil {
			return fmt.Errorf("clearing %s: %w", dir, err)
		}
	}
	return e.FS.MkdirAll(dir, 0755)
}

// discard removes app directories generated by a pass that did not complete.
func (e *Engine) discard(dirs []string) {
	for _, dir := range dirs {
		if err := util.RemoveAll(e.FS, dir); err != nil {
			e.log().Warn("could not remove generated app", zap.String("dir", dir), zap.Error(err))
		}
	}
}
