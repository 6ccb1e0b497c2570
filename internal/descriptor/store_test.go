package descriptor

import (
	"errors"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	fs := memfs.New()
	want := sample()
	require.NoError(t, Save(fs, FileName, want))

	got, err := Load(fs, FileName)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}

	_, err = fs.Stat(FileName + ".tmp")
	assert.Error(t, err, "temporary file must not survive a save")
}

// stuckFS can neither rename nor remove files.
type stuckFS struct {
	billy.Filesystem
}

func (stuckFS) Rename(from, to string) error { return errors.New("rename refused") }
func (stuckFS) Remove(name string) error     { return errors.New("remove refused") }

func TestSave_RenameFailureReportsLeftover(t *testing.T) {
	err := Save(stuckFS{memfs.New()}, FileName, sample())
	require.Error(t, err)
	assert.ErrorContains(t, err, "replacing stack.yaml: rename refused")
	assert.ErrorContains(t, err, "removing stack.yaml.tmp: remove refused")
}

func TestSave_OnDisk(t *testing.T) {
	fs := osfs.New(t.TempDir())
	require.NoError(t, Save(fs, FileName, sample()))
	require.NoError(t, Save(fs, FileName, sample()), "second save replaces the first")

	got, err := Load(fs, FileName)
	require.NoError(t, err)
	assert.Equal(t, "shop", got.Project)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(memfs.New(), FileName)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_Corrupt(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, FileName, []byte("backends: [unterminated\n"), 0644))
	_, err := Load(fs, FileName)
	assert.ErrorIs(t, err, ErrCorruptDescriptor)
}

func TestLoad_MissingFieldsDefault(t *testing.T) {
	fs := memfs.New()
	doc := "project: old\ndomain: example.com\nemail: a@example.com\nbackends: [api]\n"
	require.NoError(t, util.WriteFile(fs, FileName, []byte(doc), 0644))

	d, err := Load(fs, FileName)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, d.Version)
	assert.Equal(t, DataStores{}, d.DataStores)
	assert.Equal(t, []string{"api", SocketService}, d.Backends)
}

func TestLoad_Version(t *testing.T) {
	tests := []struct {
		version string
		want    error
	}{
		{"1.4.0", nil},
		{"2.0.0", ErrUnsupportedVersion},
		{"banana", ErrCorruptDescriptor},
	}
	for _, tc := range tests {
		t.Run(tc.version, func(t *testing.T) {
			fs := memfs.New()
			doc := "version: " + tc.version + "\nproject: p\n"
			require.NoError(t, util.WriteFile(fs, FileName, []byte(doc), 0644))
			_, err := Load(fs, FileName)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoadLegacy(t *testing.T) {
	fs := memfs.New()
	doc := `{
  // written by the old generator
  "project": "legacy",
  "domain": "example.org",
  "email": "me@example.org",
  "staging": true,
  "use_db": true,
  "use_redis": true,
  "backs": ["users", "socket"],
  "fronts": [{"name": "web", "kind": "vue"}, {"name": "blog", "kind": "nuxt"},],
}`
	require.NoError(t, util.WriteFile(fs, LegacyFileName, []byte(doc), 0644))

	d, err := LoadLegacy(fs, LegacyFileName)
	require.NoError(t, err)
	assert.Equal(t, "legacy", d.Project)
	assert.True(t, d.Staging)
	assert.Equal(t, DataStores{Postgres: true, Redis: true}, d.DataStores)
	assert.Equal(t, []string{"users", SocketService}, d.Backends)
	assert.Equal(t, []Frontend{{Name: "web", Kind: KindSPA}, {Name: "blog", Kind: KindMeta}}, d.Frontends)
}

func TestLoadLegacy_UsePGWins(t *testing.T) {
	fs := memfs.New()
	doc := `{"project": "p", "use_db": true, "use_pg": false}`
	require.NoError(t, util.WriteFile(fs, LegacyFileName, []byte(doc), 0644))

	d, err := LoadLegacy(fs, LegacyFileName)
	require.NoError(t, err)
	assert.False(t, d.DataStores.Postgres)
	assert.Equal(t, []string{SocketService}, d.Backends)
}

func TestReconstruct(t *testing.T) {
	fs := memfs.New()
	for _, dir := range []string{"backend/zeta", "backend/socket", "backend/alpha", "backend/.cache"} {
		require.NoError(t, fs.MkdirAll(dir, 0755))
	}
	require.NoError(t, util.WriteFile(fs, "frontend/web/nginx/default.conf", []byte("server {}"), 0644))
	require.NoError(t, util.WriteFile(fs, "frontend/blog/package.json", []byte("{}"), 0644))
	require.NoError(t, util.WriteFile(fs, "backend/notes.txt", []byte("x"), 0644))

	d, err := Reconstruct(fs, "recovered")
	require.NoError(t, err)
	assert.Equal(t, "recovered", d.Project)
	assert.Equal(t, []string{"alpha", "zeta", SocketService}, d.Backends)
	assert.Equal(t, []Frontend{{Name: "blog", Kind: KindMeta}, {Name: "web", Kind: KindSPA}}, d.Frontends)
	assert.Empty(t, d.Domain)
	assert.Equal(t, DataStores{}, d.DataStores)
}

func TestReconstruct_EmptyProject(t *testing.T) {
	d, err := Reconstruct(memfs.New(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, []string{SocketService}, d.Backends)
	assert.Empty(t, d.Frontends)
}
