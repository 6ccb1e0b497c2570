package reconcile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/flo-mic/stackgen/internal/descriptor"
)

func TestDiff(t *testing.T) {
	stored := descriptor.New("acme", "example.com", "ops@example.com")
	stored.Backends = []string{"orders", "billing", "socket"}
	stored.Frontends = []descriptor.Frontend{{Name: "shop", Kind: descriptor.KindSPA}}
	stored.DataStores.Postgres = true

	tests := []struct {
		name    string
		desired func(descriptor.Descriptor) descriptor.Descriptor
		want    Plan
	}{
		{
			name:    "unchanged",
			desired: func(d descriptor.Descriptor) descriptor.Descriptor { return d },
			want:    Plan{},
		},
		{
			name: "rename shows as remove and add",
			desired: func(d descriptor.Descriptor) descriptor.Descriptor {
				d, _ = d.RenameBackend("orders", "checkout")
				return d
			},
			want: Plan{AddedBackends: []string{"checkout"}, RemovedBackends: []string{"orders"}},
		},
		{
			name: "stores and frontends",
			desired: func(d descriptor.Descriptor) descriptor.Descriptor {
				d, _ = d.SetDataStore(descriptor.StorePostgres, false)
				d, _ = d.SetDataStore(descriptor.StoreRedis, true)
				d, _ = d.SetDataStore(descriptor.StoreMongo, true)
				d, _ = d.AddFrontend("admin", descriptor.KindMeta)
				d, _ = d.RemoveFrontend("shop")
				return d
			},
			want: Plan{
				AddedFrontends:   []string{"admin"},
				RemovedFrontends: []string{"shop"},
				EnabledStores:    []descriptor.DataStore{descriptor.StoreMongo, descriptor.StoreRedis},
				DisabledStores:   []descriptor.DataStore{descriptor.StorePostgres},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(stored, tt.desired(stored.Clone()))
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Diff() mismatch (-want +got):\n%s", diff)
			}
			if got.Empty() != (tt.name == "unchanged") {
				t.Errorf("Empty() = %v", got.Empty())
			}
		})
	}
}

func TestDiff_FromNothing(t *testing.T) {
	desired := descriptor.New("acme", "example.com", "ops@example.com")
	got := Diff(descriptor.Descriptor{}, desired)
	want := Plan{AddedBackends: []string{descriptor.SocketService}}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Diff() mismatch (-want +got):\n%s", diff)
	}
}
