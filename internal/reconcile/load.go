package reconcile

import (
	"errors"
	"fmt"

	"github.com/go-git/go-billy/v5"

	"github.com/flo-mic/stackgen/internal/descriptor"
)

// Source tells where a loaded descriptor came from.
type Source int

const (
	FromDescriptor Source = iota
	FromLegacy
	// FromDirectories descriptors carry names and kinds only. Domain, email
	// and store flags must be collected again before the next pass.
	FromDirectories
)

func (s Source) String() string {
	switch s {
	case FromLegacy:
		return descriptor.LegacyFileName
	case FromDirectories:
		return "service directories"
	default:
		return descriptor.FileName
	}
}

// LoadOrRecover reads the project descriptor from fs. A missing descriptor is
// imported from the legacy JSON file when one exists. An unreadable one, or a
// project that has service directories but no descriptor at all, is rebuilt
// from the directories. ErrNotFound means the project has never been generated.
func LoadOrRecover(fs billy.Filesystem, project string) (descriptor.Descriptor, Source, error) {
	d, err := descriptor.Load(fs, descriptor.FileName)
	src := FromDescriptor
	if errors.Is(err, descriptor.ErrNotFound) {
		d, err = descriptor.LoadLegacy(fs, descriptor.LegacyFileName)
		src = FromLegacy
	}
	if errors.Is(err, descriptor.ErrCorruptDescriptor) || (errors.Is(err, descriptor.ErrNotFound) && hasServiceDirs(fs)) {
		rebuilt, rerr := descriptor.Reconstruct(fs, project)
		if rerr != nil {
			return descriptor.Descriptor{}, FromDirectories, fmt.Errorf("%w (rebuilding from directories: %v)", err, rerr)
		}
		return rebuilt, FromDirectories, nil
	}
	if err != nil {
		return descriptor.Descriptor{}, src, err
	}
	return d, src, nil
}

func hasServiceDirs(fs billy.Filesystem) bool {
	for _, root := range []string{descriptor.BackendRoot, descriptor.FrontendRoot} {
		if fi, err := fs.Stat(root); err == nil && fi.IsDir() {
			return true
		}
	}
	return false
}
