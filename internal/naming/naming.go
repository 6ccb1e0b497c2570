// Package naming derives host labels, development ports and hostnames from a descriptor.
// Everything here is a pure function of its input: results are recomputed on
// every pass, never stored or patched.
package naming

import (
	"strings"
)

// DefaultLabel is used when a name contains no usable characters.
const DefaultLabel = "app"

// HostLabel turns a service name into a DNS-safe label made of [a-z0-9-],
// without leading or trailing dashes. It never fails.
func HostLabel(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case r == '_' || r == ' ':
			b.WriteByte('-')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	label := strings.Trim(b.String(), "-")
	if label == "" {
		return DefaultLabel
	}
	return label
}

// Service kinds used in container identifiers.
const (
	KindAPI   = "api"
	KindFront = "front"
)

// ServiceKey is the compose service key for a service, e.g. "api_orders".
func ServiceKey(kind, name string) string {
	return kind + "_" + HostLabel(name)
}

// ContainerName is the container identifier <project>_<kind>_<name>, with a _dev suffix
// in development. The project prefix keeps concurrently deployed projects apart.
func ContainerName(project, kind, name string, dev bool) string {
	n := HostLabel(project) + "_" + kind + "_" + HostLabel(name)
	if dev {
		n += "_dev"
	}
	return n
}
