package naming

import (
	"fmt"
	"slices"

	"github.com/flo-mic/stackgen/internal/descriptor"
)

// AdminPanelSub is the subdomain of the relational store's admin panel.
const AdminPanelSub = "pgadmin"

// Host is one public hostname and the internal service it routes to.
type Host struct {
	Name     string
	Upstream string // compose service key
	Port     int    // upstream port inside the production network

	// WWW is set on a frontend's bare host; its www counterpart redirects to it.
	WWW string
}

// HostSet is the derived set of public hosts of one pass. It is recomputed on
// every pass, so removed services and disabled stores drop out on their own.
type HostSet struct {
	// Routes holds the hosts that proxy to a service, in descriptor order:
	// frontends, backends (socket included), then the admin panel.
	Routes []Host
}

// DeriveHosts computes the host set. Two services whose names normalize to the
// same hostname are rejected with descriptor.ErrDuplicateServiceName.
func DeriveHosts(d descriptor.Descriptor) (HostSet, error) {
	var hs HostSet
	for _, f := range d.Frontends {
		label := HostLabel(f.Name)
		bare := label + "." + d.Domain
		hs.Routes = append(hs.Routes, Host{
			Name:     bare,
			Upstream: ServiceKey(KindFront, f.Name),
			Port:     UpstreamPort(f.Kind),
			WWW:      "www." + bare,
		})
	}
	for _, b := range d.Backends {
		hs.Routes = append(hs.Routes, Host{
			Name:     BackendHost(d, b),
			Upstream: ServiceKey(KindAPI, b),
			Port:     BackendContainerPort,
		})
	}
	if d.DataStores.Postgres {
		hs.Routes = append(hs.Routes, Host{
			Name:     AdminPanelSub + "." + d.Domain,
			Upstream: AdminPanelSub,
			Port:     80,
		})
	}

	owner := make(map[string]string)
	for _, h := range hs.Routes {
		for _, name := range h.names() {
			if prev, ok := owner[name]; ok {
				return HostSet{}, fmt.Errorf("%w: %s and %s both map to host %q", descriptor.ErrDuplicateServiceName, prev, h.Upstream, name)
			}
			owner[name] = h.Upstream
		}
	}
	return hs, nil
}

// BackendHost is the public hostname of a backend. The socket service is
// namespaced by project: api.socket.<project>.<domain>.
func BackendHost(d descriptor.Descriptor, backend string) string {
	if backend == descriptor.SocketService {
		return "api.socket." + HostLabel(d.Project) + "." + d.Domain
	}
	return "api." + HostLabel(backend) + "." + d.Domain
}

func (h Host) names() []string {
	if h.WWW == "" {
		return []string{h.Name}
	}
	return []string{h.Name, h.WWW}
}

// Names returns every hostname that needs a certificate, sorted and deduplicated.
func (hs HostSet) Names() []string {
	var names []string
	for _, h := range hs.Routes {
		names = append(names, h.names()...)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// First is the host whose certificate signals that issuance has completed.
// Empty when the set is empty.
func (hs HostSet) First() string {
	names := hs.Names()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
