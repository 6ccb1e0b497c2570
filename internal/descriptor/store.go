package descriptor

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// FileName is the descriptor file at the project root.
const FileName = "stack.yaml"

// Load reads the descriptor at name.
// Returns ErrNotFound if the file does not exist and ErrCorruptDescriptor if it cannot be parsed.
// Fields missing from older files keep their zero value; the socket service is always present.
func Load(fs billy.Filesystem, name string) (Descriptor, error) {
	data, err := util.ReadFile(fs, name)
	if errors.Is(err, os.ErrNotExist) {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Descriptor{}, fmt.Errorf("reading %s: %w", name, err)
	}

	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("%w: parsing %s: %v", ErrCorruptDescriptor, name, err)
	}
	if err := checkVersion(d.Version); err != nil {
		return Descriptor{}, err
	}
	if d.Version == "" {
		d.Version = CurrentVersion
	}
	return d.EnsureSocket(), nil
}

// Save writes d to name. The file is written next to its destination first and
// then renamed over it, so readers never observe a half-written descriptor.
func Save(fs billy.Filesystem, name string, d Descriptor) error {
	d = d.EnsureSocket()
	if d.Version == "" {
		d.Version = CurrentVersion
	}
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding descriptor: %w", err)
	}
	if dir := path.Dir(name); dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmp := name + ".tmp"
	if err := util.WriteFile(fs, tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := fs.Rename(tmp, name); err != nil {
		err = fmt.Errorf("replacing %s: %w", name, err)
		if rmErr := fs.Remove(tmp); rmErr != nil {
			err = multierr.Append(err, fmt.Errorf("removing %s: %w", tmp, rmErr))
		}
		return err
	}
	return nil
}

func checkVersion(v string) error {
	if v == "" {
		return nil
	}
	got, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("%w: version %q: %v", ErrCorruptDescriptor, v, err)
	}
	supported := semver.MustParse(CurrentVersion)
	if got.Major() > supported.Major() {
		return fmt.Errorf("%w: %s (this build reads %d.x)", ErrUnsupportedVersion, got, supported.Major())
	}
	return nil
}
