// Package proxy generates the production nginx reverse proxy: per-host HTTP and
// staged HTTPS server blocks, shared includes, the proxy image, and the
// bootstrap script that switches HTTPS on once certificates exist.
package proxy

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"text/template"

	"github.com/flo-mic/stackgen/internal/artifact"
	"github.com/flo-mic/stackgen/internal/naming"
)

// Dir is the proxy build context, relative to the project root.
const Dir = "nginx"

// Paths inside the proxy and certbot containers.
const (
	Webroot        = "/var/www/certbot"
	LetsEncryptDir = "/etc/letsencrypt"
	LiveDir        = LetsEncryptDir + "/live"
	ConfDir        = "/etc/nginx/conf.d"
	ProxyParamsIn  = "/etc/nginx/proxy_params.conf"
	SSLParamsIn    = ConfDir + "/ssl_params.conf"
)

// Generated files, relative to the project root.
var (
	HTTPConf        = path.Join(Dir, "conf.d", "reverse-proxy.http.conf")
	StagedHTTPSConf = path.Join(Dir, "conf.d", "reverse-proxy.https.conf.disabled")
	ActiveHTTPSConf = path.Join(Dir, "conf.d", "reverse-proxy.https.conf")
	SSLParamsConf   = path.Join(Dir, "conf.d", "ssl_params.conf")
	ProxyParamsConf = path.Join(Dir, "proxy_params.conf")
	Dockerfile      = path.Join(Dir, "Dockerfile")
	BootstrapScript = path.Join(Dir, "docker-entrypoint.d", "50-enable-https.sh")
)

// Directories mounted into the proxy and certbot containers.
var MountDirs = []string{
	path.Join(Dir, "certbot", "www"),
	path.Join(Dir, "letsencrypt"),
}

// Bootstrap timing. The poll is short so HTTPS comes up soon after issuance;
// the reload is coarse since renewals happen at most twice a day.
const (
	PollSeconds   = 5
	ReloadSeconds = 21600
)

type serverData struct {
	Routes      []naming.Host
	Webroot     string
	LiveDir     string
	SSLParams   string
	ProxyParams string
}

type bootstrapData struct {
	Active        string
	Staged        string
	First         string
	LiveDir       string
	PollSeconds   int
	ReloadSeconds int
}

// Render produces every proxy artifact for hosts. The HTTPS blocks go to the
// staged file only; the bootstrap script promotes them at runtime.
func Render(hosts naming.HostSet) ([]artifact.File, error) {
	sd := serverData{
		Routes:      hosts.Routes,
		Webroot:     Webroot,
		LiveDir:     LiveDir,
		SSLParams:   SSLParamsIn,
		ProxyParams: ProxyParamsIn,
	}
	httpConf, err := execute(httpTmpl, sd)
	if err != nil {
		return nil, err
	}
	httpsConf, err := execute(httpsTmpl, sd)
	if err != nil {
		return nil, err
	}
	script, err := execute(bootstrapTmpl, bootstrapData{
		Active:        path.Join(ConfDir, path.Base(ActiveHTTPSConf)),
		Staged:        path.Join(ConfDir, path.Base(StagedHTTPSConf)),
		First:         hosts.First(),
		LiveDir:       LiveDir,
		PollSeconds:   PollSeconds,
		ReloadSeconds: ReloadSeconds,
	})
	if err != nil {
		return nil, err
	}

	return []artifact.File{
		{Path: HTTPConf, Data: httpConf},
		{Path: StagedHTTPSConf, Data: httpsConf},
		{Path: SSLParamsConf, Data: []byte(sslParams)},
		{Path: ProxyParamsConf, Data: []byte(proxyParams)},
		{Path: Dockerfile, Data: []byte(dockerfile)},
		{Path: BootstrapScript, Data: script, Mode: 0755},
	}, nil
}

func execute(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", t.Name(), err)
	}
	return buf.Bytes(), nil
}

// CertbotScript is the shell program of the certbot companion: request one
// certificate per host, then renew twice a day until stopped. hosts should be
// the sorted, deduplicated host set. The result is plain shell; callers
// embedding it in compose must escape "$".
func CertbotScript(hosts []string, email string, staging bool) string {
	var steps []string
	if len(hosts) > 0 {
		issue := []string{
			"certbot certonly -n --keep-until-expiring",
			"--webroot -w " + Webroot,
			`-d "$d"`,
			"--email " + shellQuote(email),
			"--agree-tos --no-eff-email",
		}
		if staging {
			issue = append(issue, "--staging")
		}
		quoted := make([]string, len(hosts))
		for i, h := range hosts {
			quoted[i] = shellQuote(h)
		}
		steps = append(steps, "for d in "+strings.Join(quoted, " ")+"; do "+strings.Join(issue, " ")+"; done")
	}
	steps = append(steps,
		"trap exit TERM",
		"while :; do certbot renew -n --webroot -w "+Webroot+" --quiet || true; sleep 12h & wait $!; done",
	)
	return strings.Join(steps, "; ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
