package scaffold

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/flo-mic/stackgen/internal/config"
	"github.com/flo-mic/stackgen/internal/descriptor"
	"github.com/flo-mic/stackgen/internal/naming"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBackend(t *testing.T) {
	files := Backend("orders")
	paths := make(map[string]string)
	for _, f := range files {
		assert.True(t, f.Once, "%s must be written once", f.Path)
		paths[f.Path] = string(f.Data)
	}
	for _, p := range []string{
		"backend/orders/app/main.py",
		"backend/orders/app/core/__init__.py",
		"backend/orders/app/core/config.py",
		"backend/orders/requirements.txt",
		"backend/orders/Dockerfile",
		"backend/orders/.dockerignore",
		"backend/orders/.gitignore",
		"backend/orders/.env",
	} {
		assert.Contains(t, paths, p)
	}
	assert.Contains(t, paths["backend/orders/app/main.py"], "return {'msg': 'orders'}")
	assert.Contains(t, paths["backend/orders/app/main.py"], `FastAPI(title="orders")`)
	assert.Contains(t, paths["backend/orders/Dockerfile"], "AS dev")
	assert.Contains(t, paths["backend/orders/Dockerfile"], "AS prod")
}

func TestBackend_Socket(t *testing.T) {
	for _, f := range Backend(descriptor.SocketService) {
		if f.Path == "backend/socket/app/main.py" {
			assert.Contains(t, string(f.Data), `@app.websocket("/ws")`)
			return
		}
	}
	t.Fatal("socket entry module not generated")
}

func TestRewriteDefaultResponse(t *testing.T) {
	src := []byte(fmt.Sprintf(backendMainTmpl, "billing", "billing") + "\n# keep me: billing\n")
	out := string(RewriteDefaultResponse(src, "invoices"))

	assert.Contains(t, out, "return {'msg': 'invoices'}")
	assert.Contains(t, out, `FastAPI(title="invoices")`)
	assert.Contains(t, out, "# keep me: billing", "unrelated content stays")
}

func TestRewriteDefaultResponse_UserEdited(t *testing.T) {
	src := []byte("def hi():\n    return {'status': 'ok'}\n")
	assert.Equal(t, src, RewriteDefaultResponse(src, "invoices"))
}

func TestFrontend(t *testing.T) {
	spa := Frontend(descriptor.Frontend{Name: "shop", Kind: descriptor.KindSPA})
	meta := Frontend(descriptor.Frontend{Name: "blog", Kind: descriptor.KindMeta})

	has := func(paths []string, p string) bool {
		for _, x := range paths {
			if x == p {
				return true
			}
		}
		return false
	}
	var spaPaths, metaPaths []string
	for _, f := range spa {
		assert.True(t, f.Once)
		spaPaths = append(spaPaths, f.Path)
	}
	for _, f := range meta {
		metaPaths = append(metaPaths, f.Path)
	}
	assert.True(t, has(spaPaths, "frontend/shop/nginx/default.conf"))
	assert.True(t, has(spaPaths, "frontend/shop/Dockerfile"))
	assert.False(t, has(metaPaths, "frontend/blog/nginx/default.conf"), "only the SPA kind is served by nginx")
	assert.True(t, has(metaPaths, "frontend/blog/Dockerfile"))
}

func TestFrontendEnv(t *testing.T) {
	d := descriptor.New("Acme", "example.com", "ops@example.com")
	d.Backends = []string{"orders", "user-auth", descriptor.SocketService}
	shop := descriptor.Frontend{Name: "shop", Kind: descriptor.KindSPA}
	blog := descriptor.Frontend{Name: "blog", Kind: descriptor.KindMeta}
	d.Frontends = []descriptor.Frontend{shop, blog}
	a, err := naming.Allocate(d)
	require.NoError(t, err)

	files, err := FrontendEnv(d, shop, a)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "frontend/shop/.env", files[0].Path)
	assert.Equal(t, "VITE_API_ORDERS_URL=http://localhost:8000\n"+
		"VITE_API_USER_AUTH_URL=http://localhost:8001\n"+
		"VITE_API_SOCKET_URL=http://localhost:8002\n", string(files[0].Data))
	assert.Equal(t, "frontend/shop/.env_prod", files[1].Path)
	assert.Equal(t, "VITE_API_ORDERS_URL=https://api.orders.example.com\n"+
		"VITE_API_USER_AUTH_URL=https://api.user-auth.example.com\n"+
		"VITE_API_SOCKET_URL=https://api.socket.acme.example.com\n", string(files[1].Data))
	assert.False(t, files[0].Once, "env files follow the descriptor")

	files, err = FrontendEnv(d, blog, a)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(files[0].Data), "NUXT_PUBLIC_API_ORDERS_URL="))
}

func TestFrontendEnv_MissingAllocation(t *testing.T) {
	d := descriptor.New("p", "example.com", "a@example.com")
	_, err := FrontendEnv(d, descriptor.Frontend{Name: "x", Kind: descriptor.KindSPA}, naming.Allocation{})
	assert.Error(t, err)
}

func TestDBAssets(t *testing.T) {
	files := DBAssets()
	require.Len(t, files, 3)
	for _, f := range files {
		assert.True(t, f.Once)
	}
	assert.Equal(t, "db/.env", files[0].Path)
	assert.EqualValues(t, 0600, files[0].Mode)
	assert.Contains(t, string(files[0].Data), "REDIS_PASSWORD=")
	assert.Contains(t, string(files[2].Data), `"Host": "postgres"`)
}

func TestEnsureGitignore(t *testing.T) {
	out := string(EnsureGitignore(nil))
	for _, e := range rootGitignore {
		assert.Contains(t, out, e+"\n")
	}

	existing := []byte("dist/\n.env")
	out = string(EnsureGitignore(existing))
	assert.True(t, strings.HasPrefix(out, "dist/\n.env\n"))
	assert.Equal(t, 1, strings.Count(out, ".env\n"), "present entries are not repeated")

	full := EnsureGitignore(nil)
	assert.Equal(t, full, EnsureGitignore(full))
}

type call struct {
	dir    string
	script string
}

// fakeShell records scripts and fails the first failN of them.
func fakeShell(t *testing.T, installed []string, failN int) *[]call {
	t.Helper()
	var calls []call
	origLook, origRun := lookPath, runShell
	t.Cleanup(func() { lookPath, runShell = origLook, origRun })

	lookPath = func(file string) (string, error) {
		for _, f := range installed {
			if f == file {
				return "/usr/bin/" + file, nil
			}
		}
		return "", exec.ErrNotFound
	}
	runShell = func(_ context.Context, dir, script string, _ io.Writer) error {
		calls = append(calls, call{dir, script})
		if len(calls) <= failN {
			return fmt.Errorf("exit status 1")
		}
		return nil
	}
	return &calls
}

func TestNode_LocalFirst(t *testing.T) {
	calls := fakeShell(t, []string{"npm", "docker"}, 0)

	err := Node{}.Scaffold(context.Background(), "/work/frontend/shop/app", descriptor.KindSPA)
	require.NoError(t, err)
	require.Len(t, *calls, 1)
	assert.Equal(t, "/work/frontend/shop/app", (*calls)[0].dir)
	assert.Equal(t, "npx --yes create-vue@latest . && npm install", (*calls)[0].script)
}

func TestNode_FallsBackToContainer(t *testing.T) {
	calls := fakeShell(t, []string{"pnpm", "docker"}, 2)

	err := Node{Image: "node:22-alpine"}.Scaffold(context.Background(), "/w/app", descriptor.KindMeta)
	require.NoError(t, err)
	require.Len(t, *calls, 3)
	last := (*calls)[2].script
	assert.True(t, strings.HasPrefix(last, "docker run --rm -v '/w/app':/app -w /app 'node:22-alpine' sh -lc "), last)
	assert.Contains(t, last, "npx --yes nuxi@latest init .")
	assert.Contains(t, last, "npm config set fund false")
}

func TestNode_NoLocalPackageManager(t *testing.T) {
	calls := fakeShell(t, []string{"docker"}, 0)

	require.NoError(t, Node{}.Scaffold(context.Background(), "/w/app", descriptor.KindSPA))
	require.Len(t, *calls, 1)
	assert.Contains(t, (*calls)[0].script, config.DefaultNodeImage)
}

func TestNode_AllAttemptsFail(t *testing.T) {
	calls := fakeShell(t, []string{"npm", "docker"}, 100)
	var out bytes.Buffer

	err := Node{Out: &out}.Scaffold(context.Background(), "/w/app", descriptor.KindMeta)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScaffoldFailed))
	assert.Len(t, *calls, 4)
	assert.Contains(t, err.Error(), "nuxi init .")
}

func TestNode_NothingInstalled(t *testing.T) {
	calls := fakeShell(t, nil, 0)

	err := Node{}.Scaffold(context.Background(), "/w/app", descriptor.KindSPA)
	assert.ErrorIs(t, err, ErrScaffoldFailed)
	assert.Empty(t, *calls)
}

func TestNode_UnknownKind(t *testing.T) {
	fakeShell(t, []string{"npm"}, 0)
	err := Node{}.Scaffold(context.Background(), "/w/app", descriptor.Kind("svelte"))
	assert.ErrorIs(t, err, ErrScaffoldFailed)
}

func TestRunShell(t *testing.T) {
	if _, err := exec.LookPath("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	dir := t.TempDir()
	var out bytes.Buffer
	require.NoError(t, runShell(context.Background(), dir, "pwd", &out))
	assert.Contains(t, out.String(), dir)
	assert.Error(t, runShell(context.Background(), dir, "exit 3", io.Discard))
}
