package naming

import (
	"errors"
	"fmt"

	"github.com/flo-mic/stackgen/internal/descriptor"
)

// ErrPortCollision is returned when two services would receive the same development port.
var ErrPortCollision = errors.New("port collision")

// Base development ports. Backends count up from BackendBasePort in list order;
// frontends count up from the base of their kind in iteration order.
const (
	BackendBasePort = 8000
	SPABasePort     = 5173
	MetaBasePort    = 3000

	// BackendContainerPort is what every backend listens on inside its container.
	BackendContainerPort = 80
)

// Fixed development ports of the data stores and the admin panel.
const (
	PostgresPort = 5432
	PgAdminPort  = 5050
	MongoPort    = 27017
	RedisPort    = 6379
)

// DevServerPort is the port a frontend's development server listens on.
func DevServerPort(kind descriptor.Kind) int {
	if kind == descriptor.KindSPA {
		return SPABasePort
	}
	return MetaBasePort
}

// UpstreamPort is the port the production proxy forwards to for a frontend.
// SPA apps are served as static files by nginx; meta-framework apps run a node server.
func UpstreamPort(kind descriptor.Kind) int {
	if kind == descriptor.KindSPA {
		return 80
	}
	return MetaBasePort
}

// PortBinding maps a development host port to a container port.
type PortBinding struct {
	Service       string
	HostPort      int
	ContainerPort int
}

// Allocation holds the development ports of one pass. Production services get no
// host ports: only the proxy publishes 80 and 443.
type Allocation struct {
	Backends  []PortBinding
	Frontends []PortBinding
}

// Backend returns the binding of the named backend.
func (a Allocation) Backend(name string) (PortBinding, bool) {
	return find(a.Backends, name)
}

// Frontend returns the binding of the named frontend.
func (a Allocation) Frontend(name string) (PortBinding, bool) {
	return find(a.Frontends, name)
}

func find(bs []PortBinding, name string) (PortBinding, bool) {
	for _, b := range bs {
		if b.Service == name {
			return b, true
		}
	}
	return PortBinding{}, false
}

// Allocate assigns development ports. Duplicate names are rejected before any port is handed out.
func Allocate(d descriptor.Descriptor) (Allocation, error) {
	if err := checkDuplicates(d); err != nil {
		return Allocation{}, err
	}

	var a Allocation
	for i, name := range d.Backends {
		a.Backends = append(a.Backends, PortBinding{
			Service:       name,
			HostPort:      BackendBasePort + i,
			ContainerPort: BackendContainerPort,
		})
	}

	next := map[descriptor.Kind]int{
		descriptor.KindSPA:  SPABasePort,
		descriptor.KindMeta: MetaBasePort,
	}
	for _, f := range d.Frontends {
		a.Frontends = append(a.Frontends, PortBinding{
			Service:       f.Name,
			HostPort:      next[f.Kind],
			ContainerPort: DevServerPort(f.Kind),
		})
		next[f.Kind]++
	}

	if err := checkPorts(d, a); err != nil {
		return Allocation{}, err
	}
	return a, nil
}

func checkDuplicates(d descriptor.Descriptor) error {
	seen := make(map[string]string, len(d.Backends))
	for _, b := range d.Backends {
		key := ServiceKey(KindAPI, b)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("%w: backends %q and %q both map to service %s", descriptor.ErrDuplicateServiceName, prev, b, key)
		}
		seen[key] = b
	}
	for _, f := range d.Frontends {
		key := ServiceKey(KindFront, f.Name)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("%w: frontends %q and %q both map to service %s", descriptor.ErrDuplicateServiceName, prev, f.Name, key)
		}
		seen[key] = f.Name
	}
	return nil
}

func checkPorts(d descriptor.Descriptor, a Allocation) error {
	owner := make(map[int]string)
	claim := func(port int, who string) error {
		if prev, ok := owner[port]; ok {
			return fmt.Errorf("%w: port %d assigned to both %s and %s", ErrPortCollision, port, prev, who)
		}
		owner[port] = who
		return nil
	}

	type port struct {
		number int
		who    string
	}
	var stores []port
	if d.DataStores.Postgres {
		stores = append(stores, port{PostgresPort, "postgres"}, port{PgAdminPort, "pgadmin"})
	}
	if d.DataStores.Mongo {
		stores = append(stores, port{MongoPort, "mongo"})
	}
	if d.DataStores.Redis {
		stores = append(stores, port{RedisPort, "redis"})
	}
	for _, p := range stores {
		if err := claim(p.number, p.who); err != nil {
			return err
		}
	}
	for _, b := range a.Backends {
		if err := claim(b.HostPort, "backend "+b.Service); err != nil {
			return err
		}
	}
	for _, f := range a.Frontends {
		if err := claim(f.HostPort, "frontend "+f.Service); err != nil {
			return err
		}
	}
	return nil
}
