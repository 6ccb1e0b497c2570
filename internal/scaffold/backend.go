// Package scaffold produces the starter files of services and the shared project assets.
//
// Backend and static files are returned as artifacts for the caller to write.
// Frontend source trees come from the framework's own generator, run through a
// package manager (see Node).
package scaffold

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/flo-mic/stackgen/internal/artifact"
	"github.com/flo-mic/stackgen/internal/descriptor"
)

// MainFile is the backend entry module that carries the default response.
const MainFile = "app/main.py"

// Backend returns the starter files of a new backend service. Every file is
// written once: existing user code is never replaced.
func Backend(name string) []artifact.File {
	dir := path.Join(descriptor.BackendRoot, name)
	main := fmt.Sprintf(backendMainTmpl, pyString(name), pyString(name))
	if name == descriptor.SocketService {
		main = socketMain
	}

	files := []artifact.File{
		{Path: path.Join(dir, MainFile), Data: []byte(main)},
		{Path: path.Join(dir, "app/core/__init__.py"), Data: nil},
		{Path: path.Join(dir, "app/core/config.py"), Data: []byte(backendConfig)},
		{Path: path.Join(dir, "requirements.txt"), Data: []byte(requirements)},
		{Path: path.Join(dir, "Dockerfile"), Data: []byte(backendDockerfile)},
		{Path: path.Join(dir, ".dockerignore"), Data: []byte(dockerignore)},
		{Path: path.Join(dir, ".gitignore"), Data: []byte(gitignorePython)},
		{Path: path.Join(dir, ".env"), Data: []byte(backendEnv), Mode: 0600},
	}
	for i := range files {
		files[i].Once = true
	}
	return files
}

var (
	defaultResponseRE = regexp.MustCompile(`return\s*\{\s*'msg'\s*:\s*'[^']*'\s*\}`)
	appTitleRE        = regexp.MustCompile(`FastAPI\(\s*title\s*=\s*"[^"]*"\s*\)`)
)

// RewriteDefaultResponse points the default response and the app title of a
// backend entry module at its new name. Other content is left untouched.
func RewriteDefaultResponse(src []byte, name string) []byte {
	n := pyString(name)
	out := defaultResponseRE.ReplaceAllLiteral(src, []byte("return {'msg': '"+n+"'}"))
	return appTitleRE.ReplaceAllLiteral(out, []byte(`FastAPI(title="`+n+`")`))
}

// pyString drops characters that would end a Python string literal.
func pyString(s string) string {
	return strings.NewReplacer(`'`, "", `"`, "", `\`, "", "\n", "").Replace(s)
}
