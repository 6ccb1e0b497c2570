package descriptor

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// SocketService is the backend every project carries. It cannot be removed or renamed.
const SocketService = "socket"

// CurrentVersion is the descriptor schema version written by Save.
const CurrentVersion = "1.0.0"

var (
	// ErrDuplicateServiceName is returned when a name (or the host derived from it) is already taken.
	ErrDuplicateServiceName = errors.New("duplicate service name")

	// ErrProtectedService is returned when an edit targets the mandatory socket service.
	ErrProtectedService = errors.New("protected service")

	// ErrNotFound is returned when a descriptor or an edit target does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNameCollision is returned when a rename destination already exists.
	ErrNameCollision = errors.New("name collision")

	// ErrCorruptDescriptor is returned when the stored descriptor cannot be parsed.
	// Callers recover with Reconstruct.
	ErrCorruptDescriptor = errors.New("corrupt descriptor")

	// ErrInvalidName is returned for names that cannot be used as directory names.
	ErrInvalidName = errors.New("invalid service name")

	// ErrUnsupportedVersion is returned when the descriptor was written by a newer major schema.
	ErrUnsupportedVersion = errors.New("unsupported descriptor version")
)

// Kind is the framework family of a frontend app.
type Kind string

const (
	// KindSPA is a single-page app built by Vite (Vue). Served as static files in production.
	KindSPA Kind = "vue"
	// KindMeta is a meta-framework app (Nuxt) with its own node server in production.
	KindMeta Kind = "nuxt"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindSPA || k == KindMeta
}

// DataStore names one of the optional add-on stores.
type DataStore string

const (
	StorePostgres DataStore = "postgres"
	StoreMongo    DataStore = "mongo"
	StoreRedis    DataStore = "redis"
)

// DataStores holds the three independent store toggles.
// Fields added in later versions default to false when absent from the file.
type DataStores struct {
	Postgres bool `yaml:"postgres" json:"postgres"`
	Mongo    bool `yaml:"mongo" json:"mongo"`
	Redis    bool `yaml:"redis" json:"redis"`
}

// Enabled returns the enabled stores in a fixed order.
func (s DataStores) Enabled() []DataStore {
	var out []DataStore
	if s.Postgres {
		out = append(out, StorePostgres)
	}
	if s.Mongo {
		out = append(out, StoreMongo)
	}
	if s.Redis {
		out = append(out, StoreRedis)
	}
	return out
}

// Frontend is a named frontend app of a given kind.
type Frontend struct {
	Name string `yaml:"name" validate:"required"`
	Kind Kind   `yaml:"kind" validate:"required,oneof=vue nuxt"`
}

// Descriptor is the desired state of a project. It is the single source of truth:
// every generated file is derived from it.
//
// Edit methods never mutate the receiver; they return a modified copy.
type Descriptor struct {
	Version    string     `yaml:"version"`
	Project    string     `yaml:"project" validate:"required"`
	Domain     string     `yaml:"domain" validate:"required,fqdn"`
	Email      string     `yaml:"email" validate:"required,email"`
	Staging    bool       `yaml:"staging"`
	DataStores DataStores `yaml:"data_stores"`
	Backends   []string   `yaml:"backends"`
	Frontends  []Frontend `yaml:"frontends,omitempty" validate:"dive"`
}

// New returns a descriptor for a fresh project with the socket service in place.
func New(project, domain, email string) Descriptor {
	return Descriptor{
		Version:  CurrentVersion,
		Project:  project,
		Domain:   domain,
		Email:    email,
		Backends: []string{SocketService},
	}
}

// Clone returns a deep copy.
func (d Descriptor) Clone() Descriptor {
	c := d
	c.Backends = slices.Clone(d.Backends)
	c.Frontends = slices.Clone(d.Frontends)
	return c
}

// EnsureSocket appends the socket service if it is missing.
func (d Descriptor) EnsureSocket() Descriptor {
	if d.HasBackend(SocketService) {
		return d
	}
	c := d.Clone()
	c.Backends = append(c.Backends, SocketService)
	return c
}

// HasBackend reports whether name is a backend service.
func (d Descriptor) HasBackend(name string) bool {
	return slices.Contains(d.Backends, name)
}

// HasFrontend reports whether name is a frontend app.
func (d Descriptor) HasFrontend(name string) bool {
	return d.frontendIndex(name) >= 0
}

// Frontend returns the frontend called name.
func (d Descriptor) Frontend(name string) (Frontend, bool) {
	i := d.frontendIndex(name)
	if i < 0 {
		return Frontend{}, false
	}
	return d.Frontends[i], true
}

func (d Descriptor) frontendIndex(name string) int {
	return slices.IndexFunc(d.Frontends, func(f Frontend) bool { return f.Name == name })
}

// AddBackend appends a backend service. Insertion order is port-allocation order.
func (d Descriptor) AddBackend(name string) (Descriptor, error) {
	if err := ValidateName(name); err != nil {
		return d, err
	}
	if d.HasBackend(name) {
		return d, fmt.Errorf("%w: backend %q already exists", ErrDuplicateServiceName, name)
	}
	c := d.Clone()
	c.Backends = append(c.Backends, name)
	return c, nil
}

// AddFrontend appends a frontend app.
func (d Descriptor) AddFrontend(name string, kind Kind) (Descriptor, error) {
	if err := ValidateName(name); err != nil {
		return d, err
	}
	if !kind.Valid() {
		return d, fmt.Errorf("frontend %q: unknown kind %q (want %q or %q)", name, kind, KindSPA, KindMeta)
	}
	if d.HasFrontend(name) {
		return d, fmt.Errorf("%w: frontend %q already exists", ErrDuplicateServiceName, name)
	}
	c := d.Clone()
	c.Frontends = append(c.Frontends, Frontend{Name: name, Kind: kind})
	return c, nil
}

// RemoveBackend drops a backend service. The socket service is protected.
func (d Descriptor) RemoveBackend(name string) (Descriptor, error) {
	if name == SocketService {
		return d, fmt.Errorf("%w: %q is the mandatory socket service and cannot be removed", ErrProtectedService, name)
	}
	i := slices.Index(d.Backends, name)
	if i < 0 {
		return d, fmt.Errorf("%w: backend %q", ErrNotFound, name)
	}
	c := d.Clone()
	c.Backends = slices.Delete(c.Backends, i, i+1)
	return c, nil
}

// RemoveFrontend drops a frontend app.
func (d Descriptor) RemoveFrontend(name string) (Descriptor, error) {
	i := d.frontendIndex(name)
	if i < 0 {
		return d, fmt.Errorf("%w: frontend %q", ErrNotFound, name)
	}
	c := d.Clone()
	c.Frontends = slices.Delete(c.Frontends, i, i+1)
	return c, nil
}

// RenameBackend renames a backend service in place, keeping its position.
func (d Descriptor) RenameBackend(old, name string) (Descriptor, error) {
	if old == SocketService {
		return d, fmt.Errorf("%w: %q is the mandatory socket service and cannot be renamed", ErrProtectedService, old)
	}
	i := slices.Index(d.Backends, old)
	if i < 0 {
		return d, fmt.Errorf("%w: backend %q", ErrNotFound, old)
	}
	if err := ValidateName(name); err != nil {
		return d, err
	}
	if name == SocketService {
		return d, fmt.Errorf("%w: %q is reserved for the mandatory socket service", ErrProtectedService, name)
	}
	if d.HasBackend(name) {
		return d, fmt.Errorf("%w: backend %q already exists", ErrNameCollision, name)
	}
	c := d.Clone()
	c.Backends[i] = name
	return c, nil
}

// RenameFrontend renames a frontend app in place, keeping its kind and position.
func (d Descriptor) RenameFrontend(old, name string) (Descriptor, error) {
	i := d.frontendIndex(old)
	if i < 0 {
		return d, fmt.Errorf("%w: frontend %q", ErrNotFound, old)
	}
	if err := ValidateName(name); err != nil {
		return d, err
	}
	if d.HasFrontend(name) {
		return d, fmt.Errorf("%w: frontend %q already exists", ErrNameCollision, name)
	}
	c := d.Clone()
	c.Frontends[i].Name = name
	return c, nil
}

// SetDataStore toggles one store.
func (d Descriptor) SetDataStore(store DataStore, enabled bool) (Descriptor, error) {
	c := d.Clone()
	switch store {
	case StorePostgres:
		c.DataStores.Postgres = enabled
	case StoreMongo:
		c.DataStores.Mongo = enabled
	case StoreRedis:
		c.DataStores.Redis = enabled
	default:
		return d, fmt.Errorf("unknown data store %q", store)
	}
	return c, nil
}

// ValidateName checks that name can be used as a service directory name.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	case name != strings.TrimSpace(name):
		return fmt.Errorf("%w: %q has leading or trailing whitespace", ErrInvalidName, name)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}
