package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/flo-mic/stackgen/internal/descriptor"
)

// parseList splits a comma or space separated answer, dropping blanks and repeats.
func parseList(s string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// parseFrontend reads "name" or "name:kind". The kind defaults to the SPA kind.
func parseFrontend(arg string) (descriptor.Frontend, error) {
	name, kind, ok := strings.Cut(arg, ":")
	f := descriptor.Frontend{Name: strings.TrimSpace(name), Kind: descriptor.KindSPA}
	if ok {
		f.Kind = descriptor.Kind(strings.ToLower(strings.TrimSpace(kind)))
	}
	if !f.Kind.Valid() {
		return f, fmt.Errorf("frontend %q: unknown kind %q (want %s or %s)", f.Name, f.Kind, descriptor.KindSPA, descriptor.KindMeta)
	}
	return f, nil
}

func parseFrontends(args []string) ([]descriptor.Frontend, error) {
	var out []descriptor.Frontend
	for _, s := range args {
		f, err := parseFrontend(s)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

var allStores = []descriptor.DataStore{descriptor.StorePostgres, descriptor.StoreMongo, descriptor.StoreRedis}

func parseStores(names []string) ([]descriptor.DataStore, error) {
	var out []descriptor.DataStore
	for _, n := range names {
		s := descriptor.DataStore(strings.ToLower(n))
		if !slices.Contains(allStores, s) {
			return nil, fmt.Errorf("unknown data store %q (want postgres, mongo or redis)", n)
		}
		out = append(out, s)
	}
	return out, nil
}

// parseRenames reads "old=new" pairs.
func parseRenames(args []string) ([][2]string, error) {
	var out [][2]string
	for _, s := range args {
		old, name, ok := strings.Cut(s, "=")
		if !ok || old == "" || name == "" {
			return nil, fmt.Errorf("rename %q: want old=new", s)
		}
		out = append(out, [2]string{old, name})
	}
	return out, nil
}

// newAnswers is everything the new-project flow collects.
type newAnswers struct {
	Project   string
	Domain    string
	Email     string
	Staging   bool
	Stores    []descriptor.DataStore
	Backends  []string
	Frontends []descriptor.Frontend
}

// buildDescriptor turns the answers into a validated descriptor. The socket
// service follows the requested backends.
func buildDescriptor(a newAnswers) (descriptor.Descriptor, error) {
	d := descriptor.New(a.Project, a.Domain, a.Email)
	d.Backends = nil
	d.Staging = a.Staging

	var err error
	for _, s := range a.Stores {
		if d, err = d.SetDataStore(s, true); err != nil {
			return d, err
		}
	}
	for _, b := range a.Backends {
		if b == descriptor.SocketService {
			continue
		}
		if d, err = d.AddBackend(b); err != nil {
			return d, err
		}
	}
	d = d.EnsureSocket()
	for _, f := range a.Frontends {
		if d, err = d.AddFrontend(f.Name, f.Kind); err != nil {
			return d, err
		}
	}
	return d, descriptor.Validate(d)
}

// edits is a batch of changes to an existing project. Renames run first, each
// as its own pass since they move directories; the rest is applied together.
type edits struct {
	RenameBackends  [][2]string
	RenameFrontends [][2]string
	RemoveBackends  []string
	RemoveFrontends []string
	AddBackends     []string
	AddFrontends    []descriptor.Frontend
	Enable          []descriptor.DataStore
	Disable         []descriptor.DataStore

	Domain  *string
	Email   *string
	Staging *bool
}

func (x edits) empty() bool {
	return len(x.RenameBackends)+len(x.RenameFrontends)+len(x.RemoveBackends)+len(x.RemoveFrontends)+
		len(x.AddBackends)+len(x.AddFrontends)+len(x.Enable)+len(x.Disable) == 0 &&
		x.Domain == nil && x.Email == nil && x.Staging == nil
}

// apply returns d with every edit except the renames.
func (x edits) apply(d descriptor.Descriptor) (descriptor.Descriptor, error) {
	var err error
	for _, b := range x.RemoveBackends {
		if d, err = d.RemoveBackend(b); err != nil {
			return d, err
		}
	}
	for _, f := range x.RemoveFrontends {
		if d, err = d.RemoveFrontend(f); err != nil {
			return d, err
		}
	}
	for _, b := range x.AddBackends {
		if d, err = d.AddBackend(b); err != nil {
			return d, err
		}
	}
	for _, f := range x.AddFrontends {
		if d, err = d.AddFrontend(f.Name, f.Kind); err != nil {
			return d, err
		}
	}
	for _, s := range x.Enable {
		if d, err = d.SetDataStore(s, true); err != nil {
			return d, err
		}
	}
	for _, s := range x.Disable {
		if d, err = d.SetDataStore(s, false); err != nil {
			return d, err
		}
	}

	d = d.Clone()
	if x.Domain != nil {
		d.Domain = *x.Domain
	}
	if x.Email != nil {
		d.Email = *x.Email
	}
	if x.Staging != nil {
		d.Staging = *x.Staging
	}
	return d, nil
}
