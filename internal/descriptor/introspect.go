package descriptor

import (
	"errors"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5"
)

const (
	// BackendRoot and FrontendRoot hold one directory per service.
	BackendRoot  = "backend"
	FrontendRoot = "frontend"
)

// SPAMarker is the file whose presence classifies a frontend directory as the SPA kind.
// Only SPA apps ship their own nginx config; meta-framework apps run a node server.
var SPAMarker = path.Join("nginx", "default.conf")

// Reconstruct rebuilds the service lists from the directories under the backend
// and frontend roots. It recovers names and kinds only: domain, email and the
// data store flags are left empty and must be collected again.
//
// Backends are sorted by name with the socket service last, the position it
// takes in a new project where it follows the backends the user asked for.
func Reconstruct(fs billy.Filesystem, project string) (Descriptor, error) {
	d := Descriptor{Version: CurrentVersion, Project: project}

	backends, err := serviceDirs(fs, BackendRoot)
	if err != nil {
		return Descriptor{}, err
	}
	for _, b := range backends {
		if b != SocketService {
			d.Backends = append(d.Backends, b)
		}
	}

	frontends, err := serviceDirs(fs, FrontendRoot)
	if err != nil {
		return Descriptor{}, err
	}
	for _, f := range frontends {
		kind := KindMeta
		if _, err := fs.Stat(path.Join(FrontendRoot, f, SPAMarker)); err == nil {
			kind = KindSPA
		}
		d.Frontends = append(d.Frontends, Frontend{Name: f, Kind: kind})
	}

	return d.EnsureSocket(), nil
}

func serviceDirs(fs billy.Filesystem, root string) ([]string, error) {
	entries, err := fs.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}
