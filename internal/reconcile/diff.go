package reconcile

import (
	"slices"

	"github.com/flo-mic/stackgen/internal/descriptor"
)

// Plan lists what changed between the stored descriptor and the one being applied.
// Every list is sorted.
type Plan struct {
	AddedBackends    []string
	RemovedBackends  []string
	AddedFrontends   []string
	RemovedFrontends []string
	EnabledStores    []descriptor.DataStore
	DisabledStores   []descriptor.DataStore
}

// Empty reports whether the plan changes no service or store.
func (p Plan) Empty() bool {
	return len(p.AddedBackends)+len(p.RemovedBackends)+len(p.AddedFrontends)+
		len(p.RemovedFrontends)+len(p.EnabledStores)+len(p.DisabledStores) == 0
}

// Diff compares stored with desired. A rename shows up as one removal and one addition.
func Diff(stored, desired descriptor.Descriptor) Plan {
	var p Plan
	p.AddedBackends, p.RemovedBackends = diffStrings(desired.Backends, stored.Backends)
	p.AddedFrontends, p.RemovedFrontends = diffStrings(frontendNames(desired), frontendNames(stored))

	enabled, disabled := diffStrings(storeNames(desired), storeNames(stored))
	for _, s := range enabled {
		p.EnabledStores = append(p.EnabledStores, descriptor.DataStore(s))
	}
	for _, s := range disabled {
		p.DisabledStores = append(p.DisabledStores, descriptor.DataStore(s))
	}
	return p
}

func diffStrings(desired, stored []string) (toAdd, toRemove []string) {
	desiredSet := toSet(desired)
	storedSet := toSet(stored)

	for s := range desiredSet {
		if !storedSet[s] {
			toAdd = append(toAdd, s)
		}
	}
	for s := range storedSet {
		if !desiredSet[s] {
			toRemove = append(toRemove, s)
		}
	}
	slices.Sort(toAdd)
	slices.Sort(toRemove)
	return
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

func frontendNames(d descriptor.Descriptor) []string {
	names := make([]string, len(d.Frontends))
	for i, f := range d.Frontends {
		names[i] = f.Name
	}
	return names
}

func storeNames(d descriptor.Descriptor) []string {
	var names []string
	for _, s := range d.DataStores.Enabled() {
		names = append(names, string(s))
	}
	return names
}
