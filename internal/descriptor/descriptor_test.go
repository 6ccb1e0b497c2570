package descriptor

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Descriptor {
	d := New("shop", "example.com", "ops@example.com")
	d.Backends = []string{"orders", "billing", SocketService}
	d.Frontends = []Frontend{{Name: "shop", Kind: KindSPA}, {Name: "admin", Kind: KindMeta}}
	d.DataStores.Postgres = true
	return d
}

func TestNew_HasSocket(t *testing.T) {
	d := New("p", "example.com", "a@example.com")
	assert.Equal(t, []string{SocketService}, d.Backends)
	assert.Equal(t, CurrentVersion, d.Version)
}

func TestEnsureSocket(t *testing.T) {
	d := Descriptor{Backends: []string{"a", "b"}}
	got := d.EnsureSocket()
	assert.Equal(t, []string{"a", "b", SocketService}, got.Backends)
	assert.Equal(t, []string{"a", "b"}, d.Backends, "receiver must not change")

	again := got.EnsureSocket()
	assert.Equal(t, got.Backends, again.Backends)
}

func TestAddBackend(t *testing.T) {
	d := sample()
	got, err := d.AddBackend("search")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "billing", SocketService, "search"}, got.Backends)
	assert.Len(t, d.Backends, 3)
}

func TestAddBackend_Duplicate(t *testing.T) {
	d := sample()
	got, err := d.AddBackend("orders")
	require.ErrorIs(t, err, ErrDuplicateServiceName)
	assert.Empty(t, cmp.Diff(d, got))
}

func TestAddBackend_InvalidName(t *testing.T) {
	for _, name := range []string{"", "  ", "a/b", `a\b`, "..", " x"} {
		_, err := sample().AddBackend(name)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}
}

func TestAddFrontend(t *testing.T) {
	d := sample()
	got, err := d.AddFrontend("docs", KindMeta)
	require.NoError(t, err)
	f, ok := got.Frontend("docs")
	require.True(t, ok)
	assert.Equal(t, KindMeta, f.Kind)

	_, err = got.AddFrontend("docs", KindSPA)
	assert.ErrorIs(t, err, ErrDuplicateServiceName)

	_, err = d.AddFrontend("x", Kind("react"))
	assert.Error(t, err)
}

func TestRemoveBackend(t *testing.T) {
	d := sample()
	got, err := d.RemoveBackend("orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"billing", SocketService}, got.Backends)

	_, err = d.RemoveBackend("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveBackend_SocketProtected(t *testing.T) {
	d := sample()
	got, err := d.RemoveBackend(SocketService)
	require.ErrorIs(t, err, ErrProtectedService)
	assert.Contains(t, err.Error(), "mandatory socket service")
	assert.Empty(t, cmp.Diff(d, got))
}

func TestRemoveFrontend(t *testing.T) {
	d := sample()
	got, err := d.RemoveFrontend("admin")
	require.NoError(t, err)
	assert.False(t, got.HasFrontend("admin"))
	assert.True(t, d.HasFrontend("admin"))

	_, err = d.RemoveFrontend("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenameBackend(t *testing.T) {
	d := sample()
	got, err := d.RenameBackend("orders", "checkout")
	require.NoError(t, err)
	assert.Equal(t, []string{"checkout", "billing", SocketService}, got.Backends, "position is kept")
}

func TestRenameBackend_Errors(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
		want     error
	}{
		{"socket source", SocketService, "ws", ErrProtectedService},
		{"socket destination", "orders", SocketService, ErrProtectedService},
		{"missing source", "ghost", "x", ErrNotFound},
		{"existing destination", "orders", "billing", ErrNameCollision},
		{"invalid destination", "orders", "a/b", ErrInvalidName},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := sample()
			got, err := d.RenameBackend(tc.old, tc.new)
			require.ErrorIs(t, err, tc.want)
			assert.Empty(t, cmp.Diff(d, got), "descriptor must be unchanged")
		})
	}
}

func TestRenameFrontend(t *testing.T) {
	d := sample()
	got, err := d.RenameFrontend("shop", "store")
	require.NoError(t, err)
	assert.Equal(t, []Frontend{{Name: "store", Kind: KindSPA}, {Name: "admin", Kind: KindMeta}}, got.Frontends)
	assert.Equal(t, "shop", d.Frontends[0].Name, "receiver must not change")

	_, err = d.RenameFrontend("shop", "admin")
	assert.ErrorIs(t, err, ErrNameCollision)
	_, err = d.RenameFrontend("ghost", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetDataStore(t *testing.T) {
	d := sample()
	got, err := d.SetDataStore(StoreRedis, true)
	require.NoError(t, err)
	assert.Equal(t, []DataStore{StorePostgres, StoreRedis}, got.DataStores.Enabled())

	got, err = got.SetDataStore(StorePostgres, false)
	require.NoError(t, err)
	assert.Equal(t, []DataStore{StoreRedis}, got.DataStores.Enabled())

	_, err = d.SetDataStore("mysql", true)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(sample()))

	d := sample()
	d.Domain = "not a domain"
	d.Email = "nope"
	d.Backends = []string{"a", "a"}
	d.Frontends = append(d.Frontends, Frontend{Name: "x", Kind: "react"})
	err := Validate(d)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateServiceName)
	assert.ErrorIs(t, err, ErrProtectedService)
	msg := err.Error()
	assert.Contains(t, msg, "domain")
	assert.Contains(t, msg, "email")
	assert.Contains(t, msg, "frontends[2].kind")
}

func TestValidate_MissingProject(t *testing.T) {
	d := sample()
	d.Project = ""
	err := Validate(d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project is required")
	assert.False(t, errors.Is(err, ErrDuplicateServiceName))
}
