// Package artifact writes the generated files of one reconciliation pass.
//
// A Writer remembers what every path held before it was first touched, so a
// pass that fails halfway can put the project back the way it found it.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/flo-mic/stackgen/internal/delta"
)

// ErrPartialWrite is returned when a pass could not write all of its artifacts.
// The descriptor is not saved after a partial write.
var ErrPartialWrite = errors.New("partial write")

// File is one generated artifact.
type File struct {
	Path string // relative to the project root, slash separated
	Data []byte
	Mode os.FileMode

	// Once marks files that are only written when missing, so user edits survive.
	Once bool
}

// Change records what a pass did to one path.
type Change struct {
	Path   string
	Status delta.Status
}

type snapshot struct {
	existed bool
	data    []byte
	mode    os.FileMode
}

// Writer writes artifacts into a project filesystem.
type Writer struct {
	fs      billy.Filesystem
	log     *zap.Logger
	saved   map[string]snapshot
	order   []string
	dirs    []string // created by this writer, parents first
	changes []Change
}

// NewWriter returns a Writer for fs. A nil logger discards diagnostics.
func NewWriter(fs billy.Filesystem, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{fs: fs, log: log, saved: make(map[string]snapshot)}
}

// Write places f, creating parent directories as needed. Content identical to
// what is on disk is not rewritten.
func (w *Writer) Write(f File) error {
	mode := f.Mode
	if mode == 0 {
		mode = 0644
	}

	status, err := delta.Compare(w.fs, f.Path, f.Data)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrPartialWrite, f.Path, err)
	}
	if f.Once && status != delta.Created {
		status = delta.Unchanged
	}
	if status == delta.Unchanged {
		w.changes = append(w.changes, Change{Path: f.Path, Status: status})
		return nil
	}

	if err := w.remember(f.Path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPartialWrite, f.Path, err)
	}
	if dir := path.Dir(f.Path); dir != "." {
		w.rememberDirs(dir)
		if err := w.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: mkdir %s: %v", ErrPartialWrite, dir, err)
		}
	}
	if err := w.place(f.Path, f.Data, mode); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrPartialWrite, f.Path, err)
	}

	w.log.Debug("artifact written", zap.String("path", f.Path), zap.Stringer("status", status))
	w.changes = append(w.changes, Change{Path: f.Path, Status: status})
	return nil
}

// Remove deletes p if it exists. Rollback puts it back.
func (w *Writer) Remove(p string) error {
	if _, err := w.fs.Stat(p); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := w.remember(p); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPartialWrite, p, err)
	}
	if err := w.fs.Remove(p); err != nil {
		return fmt.Errorf("%w: removing %s: %v", ErrPartialWrite, p, err)
	}
	w.log.Debug("artifact removed", zap.String("path", p))
	w.changes = append(w.changes, Change{Path: p, Status: delta.Removed})
	return nil
}

// WriteAll writes files in order and stops at the first failure.
func (w *Writer) WriteAll(files []File) error {
	for _, f := range files {
		if err := w.Write(f); err != nil {
			return err
		}
	}
	return nil
}

// Changes lists every path handled so far, in write order.
func (w *Writer) Changes() []Change {
	return append([]Change(nil), w.changes...)
}

// Changed lists only the paths that were created, updated or removed.
func (w *Writer) Changed() []Change {
	var out []Change
	for _, c := range w.changes {
		if c.Status != delta.Unchanged {
			out = append(out, c)
		}
	}
	return out
}

// Rollback restores every path written by w to its previous content and removes
// files and directories that did not exist before. All restore errors are
// reported together.
func (w *Writer) Rollback() error {
	var err error
	for i := len(w.order) - 1; i >= 0; i-- {
		p := w.order[i]
		s := w.saved[p]
		if !s.existed {
			w.log.Debug("rollback: removing new file", zap.String("path", p))
			if rmErr := w.fs.Remove(p); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				err = multierr.Append(err, fmt.Errorf("removing %s: %w", p, rmErr))
			}
			continue
		}
		w.log.Debug("rollback: restoring", zap.String("path", p))
		if wErr := w.place(p, s.data, s.mode); wErr != nil {
			err = multierr.Append(err, fmt.Errorf("restoring %s: %w", p, wErr))
		}
	}
	for i := len(w.dirs) - 1; i >= 0; i-- {
		// Directories that gained other content are left in place.
		if rmErr := w.fs.Remove(w.dirs[i]); rmErr != nil {
			w.log.Debug("rollback: keeping directory", zap.String("path", w.dirs[i]), zap.Error(rmErr))
		}
	}
	w.saved = make(map[string]snapshot)
	w.order = nil
	w.dirs = nil
	w.changes = nil
	return err
}

// rememberDirs records the missing ancestors of dir before they are created.
func (w *Writer) rememberDirs(dir string) {
	var missing []string
	for d := dir; d != "." && d != "/"; d = path.Dir(d) {
		if _, err := w.fs.Stat(d); err == nil {
			break
		}
		missing = append(missing, d)
	}
	for i := len(missing) - 1; i >= 0; i-- {
		w.dirs = append(w.dirs, missing[i])
	}
}

func (w *Writer) remember(p string) error {
	if _, ok := w.saved[p]; ok {
		return nil
	}
	info, err := w.fs.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		w.saved[p] = snapshot{}
		w.order = append(w.order, p)
		return nil
	}
	if err != nil {
		return err
	}
	data, err := util.ReadFile(w.fs, p)
	if err != nil {
		return err
	}
	w.saved[p] = snapshot{existed: true, data: data, mode: info.Mode().Perm()}
	w.order = append(w.order, p)
	return nil
}

// place writes data to p with mode. billy has no portable chmod, so a file whose
// permissions differ is removed first and recreated with the wanted mode.
func (w *Writer) place(p string, data []byte, mode os.FileMode) error {
	if info, err := w.fs.Stat(p); err == nil && info.Mode().Perm() != mode.Perm() {
		if err := w.fs.Remove(p); err != nil {
			return err
		}
	}
	return util.WriteFile(w.fs, p, data, mode)
}
