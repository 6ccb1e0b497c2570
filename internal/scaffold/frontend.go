package scaffold

import (
	"fmt"
	"path"
	"strings"

	"github.com/flo-mic/stackgen/internal/artifact"
	"github.com/flo-mic/stackgen/internal/descriptor"
	"github.com/flo-mic/stackgen/internal/naming"
)

// AppDir is the directory inside a frontend that holds the generated framework sources.
const AppDir = "app"

// Env files of a frontend, next to its Dockerfile.
const (
	DevEnvFile  = ".env"
	ProdEnvFile = ".env_prod"
)

// Frontend returns the files that wrap a scaffolded frontend app: its
// Dockerfile, ignores and, for the SPA kind, the nginx config that serves the
// built bundle. Written once.
func Frontend(f descriptor.Frontend) []artifact.File {
	dir := path.Join(descriptor.FrontendRoot, f.Name)
	files := []artifact.File{
		{Path: path.Join(dir, ".dockerignore"), Data: []byte(dockerignore)},
		{Path: path.Join(dir, ".gitignore"), Data: []byte(gitignoreNode)},
	}
	if f.Kind == descriptor.KindSPA {
		files = append(files,
			artifact.File{Path: path.Join(dir, "Dockerfile"), Data: []byte(spaDockerfile)},
			artifact.File{Path: path.Join(dir, descriptor.SPAMarker), Data: []byte(spaNginxConf)},
		)
	} else {
		files = append(files, artifact.File{Path: path.Join(dir, "Dockerfile"), Data: []byte(metaDockerfile)})
	}
	for i := range files {
		files[i].Once = true
	}
	return files
}

// EnvPrefix is the prefix a frontend framework exposes to client code.
func EnvPrefix(kind descriptor.Kind) string {
	if kind == descriptor.KindSPA {
		return "VITE_"
	}
	return "NUXT_PUBLIC_"
}

// FrontendEnv returns the development and production env files of a frontend.
// They hold one API_<NAME>_URL per backend: localhost ports in development,
// public hostnames in production. They carry no secrets and are regenerated
// on every pass so renames and removals reach the frontends.
func FrontendEnv(d descriptor.Descriptor, f descriptor.Frontend, a naming.Allocation) ([]artifact.File, error) {
	prefix := EnvPrefix(f.Kind)
	var dev, prod strings.Builder
	for _, b := range d.Backends {
		port, ok := a.Backend(b)
		if !ok {
			return nil, fmt.Errorf("no development port allocated for backend %q", b)
		}
		key := prefix + "API_" + envName(b) + "_URL"
		fmt.Fprintf(&dev, "%s=http://localhost:%d\n", key, port.HostPort)
		fmt.Fprintf(&prod, "%s=https://%s\n", key, naming.BackendHost(d, b))
	}

	dir := path.Join(descriptor.FrontendRoot, f.Name)
	return []artifact.File{
		{Path: path.Join(dir, DevEnvFile), Data: []byte(dev.String())},
		{Path: path.Join(dir, ProdEnvFile), Data: []byte(prod.String())},
	}, nil
}

// envName upper-cases name and replaces anything that cannot appear in an
// environment variable name with an underscore.
func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, name)
}

// DBAssets returns the shared data store files: credentials, the relational
// init script and the admin panel's server list. Written once.
func DBAssets() []artifact.File {
	return []artifact.File{
		{Path: "db/.env", Data: []byte(dbEnv), Mode: 0600, Once: true},
		{Path: "db/init/00_init.sql", Data: []byte(initSQL), Once: true},
		{Path: "db/pgadmin/servers.json", Data: []byte(pgAdminServers), Once: true},
	}
}

// GitignoreFile is the project ignore file.
const GitignoreFile = ".gitignore"

// EnsureGitignore appends the project's ignore entries that existing lacks.
// Lines already present are kept as they are.
func EnsureGitignore(existing []byte) []byte {
	content := string(existing)
	have := make(map[string]bool)
	for _, line := range strings.Split(content, "\n") {
		have[strings.TrimSpace(line)] = true
	}

	var missing []string
	for _, entry := range rootGitignore {
		if !have[entry] {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return existing
	}
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return []byte(content + strings.Join(missing, "\n") + "\n")
}
