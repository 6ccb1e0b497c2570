// Package compose renders the development and production compose documents.
//
// Both renderers are pure: the same descriptor and allocation always produce the
// same bytes. Development publishes every service on a host port and has no
// proxy. Production publishes nothing but the proxy (80/443); a certbot
// companion issues and renews the certificates.
package compose

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flo-mic/stackgen/internal/descriptor"
	"github.com/flo-mic/stackgen/internal/naming"
	"github.com/flo-mic/stackgen/internal/proxy"
)

// File names of the rendered documents, relative to the project root.
const (
	DevelopmentFile = "compose.yml"
	ProductionFile  = "compose.prod.yml"
)

const (
	restartPolicy = "unless-stopped"

	targetDev  = "dev"
	targetProd = "prod"

	certbotImage = "certbot/certbot:latest"
)

// socketCommand runs the socket service with exactly one worker. Its protocol
// keeps per-connection session state, which breaks with more than one worker.
var socketCommand = []string{
	"gunicorn", "-k", "uvicorn.workers.UvicornWorker",
	"-w", "1", "-t", "1", "-b", "0.0.0.0:80", "main:app",
}

// SocketCommand returns the production command of the socket service.
func SocketCommand() []string {
	return slices.Clone(socketCommand)
}

// Options carries user preferences that are not part of the descriptor.
type Options struct {
	// TimeZone is passed to the relational store container. Defaults to UTC.
	TimeZone string
}

func (o Options) timeZone() string {
	if o.TimeZone == "" {
		return "UTC"
	}
	return o.TimeZone
}

// RenderDevelopment renders the development document: source trees mounted for
// live reload, every service published on its allocated host port, no proxy.
func RenderDevelopment(d descriptor.Descriptor, a naming.Allocation, opts Options) ([]byte, error) {
	project := naming.HostLabel(d.Project)
	services := newMapping()
	vols := &volumeSet{}

	storeServices(services, d, project, true, opts.timeZone(), vols)
	deps := storeDependencies(d)

	for _, name := range d.Backends {
		b, ok := a.Backend(name)
		if !ok {
			return nil, missingAllocation("backend", name)
		}
		dir := "./" + path.Join(descriptor.BackendRoot, name)
		svc := newMapping().
			set("build", build(dir, targetDev)).
			setStr("container_name", naming.ContainerName(d.Project, naming.KindAPI, name, true)).
			setStr("env_file", dir+"/.env").
			set("volumes", seq(str(dir+"/app:/code"))).
			set("environment", polling())
		if len(deps) > 0 {
			svc.set("depends_on", flowSeq(strs(deps...)...))
		}
		svc.set("ports", seq(portMapping(b.HostPort, b.ContainerPort))).
			setStr("restart", restartPolicy)
		services.set(naming.ServiceKey(naming.KindAPI, name), svc.node)
	}

	for _, f := range d.Frontends {
		p, ok := a.Frontend(f.Name)
		if !ok {
			return nil, missingAllocation("frontend", f.Name)
		}
		key := naming.ServiceKey(naming.KindFront, f.Name)
		modules := key + "_node_modules"
		vols.add(modules)

		dir := "./" + path.Join(descriptor.FrontendRoot, f.Name)
		svc := newMapping().
			set("build", build(dir, targetDev)).
			setStr("container_name", naming.ContainerName(d.Project, naming.KindFront, f.Name, true)).
			set("volumes", seq(strs(dir+"/app:/app", modules+":/app/node_modules")...)).
			set("environment", polling()).
			setStr("env_file", dir+"/.env").
			setStr("command", "npm run dev -- --host 0.0.0.0").
			set("ports", seq(portMapping(p.HostPort, p.ContainerPort))).
			setStr("restart", restartPolicy)
		services.set(key, svc.node)
	}

	return encode(document(services, vols))
}

// RenderProduction renders the production document. Application services publish
// no ports; every one of them sits behind the proxy. hosts is the certificate
// host set passed to the certbot companion.
func RenderProduction(d descriptor.Descriptor, hosts naming.HostSet, opts Options) ([]byte, error) {
	project := naming.HostLabel(d.Project)
	services := newMapping()
	vols := &volumeSet{}

	storeServices(services, d, project, false, opts.timeZone(), vols)
	deps := storeDependencies(d)
	var proxyDeps []string
	for _, s := range deps {
		proxyDeps = append(proxyDeps, s)
		if s == string(descriptor.StorePostgres) {
			proxyDeps = append(proxyDeps, naming.AdminPanelSub)
		}
	}

	for _, name := range d.Backends {
		key := naming.ServiceKey(naming.KindAPI, name)
		dir := "./" + path.Join(descriptor.BackendRoot, name)
		svc := newMapping().
			set("build", build(dir, targetProd)).
			setStr("container_name", naming.ContainerName(d.Project, naming.KindAPI, name, false)).
			setStr("env_file", dir+"/.env")
		if len(deps) > 0 {
			svc.set("depends_on", flowSeq(strs(deps...)...))
		}
		if name == descriptor.SocketService {
			svc.set("command", flowSeq(quotedStrs(socketCommand...)...))
		}
		svc.setStr("restart", restartPolicy)
		services.set(key, svc.node)
		proxyDeps = append(proxyDeps, key)
	}

	for _, f := range d.Frontends {
		key := naming.ServiceKey(naming.KindFront, f.Name)
		dir := "./" + path.Join(descriptor.FrontendRoot, f.Name)
		svc := newMapping().
			set("build", build(dir, targetProd)).
			setStr("container_name", naming.ContainerName(d.Project, naming.KindFront, f.Name, false)).
			setStr("env_file", dir+"/.env_prod").
			setStr("restart", restartPolicy)
		services.set(key, svc.node)
		proxyDeps = append(proxyDeps, key)
	}

	px := newMapping().
		set("build", newMapping().setStr("context", "./"+proxy.Dir).node).
		setStr("container_name", project+"_proxy").
		set("ports", flowSeq(quotedStrs("80:80", "443:443")...)).
		set("volumes", seq(strs(
			"./nginx/conf.d:/etc/nginx/conf.d:rw",
			"./nginx/proxy_params.conf:/etc/nginx/proxy_params.conf:ro",
			"./nginx/certbot/www:"+proxy.Webroot+":ro",
			"./nginx/letsencrypt:"+proxy.LetsEncryptDir+":ro",
		)...)).
		set("depends_on", flowSeq(strs(proxyDeps...)...)).
		setStr("restart", restartPolicy)
	services.set("proxy", px.node)

	script := proxy.CertbotScript(hosts.Names(), d.Email, d.Staging)
	certbot := newMapping().
		setStr("image", certbotImage).
		setStr("container_name", project+"_certbot").
		set("volumes", seq(strs(
			"./nginx/certbot/www:"+proxy.Webroot,
			"./nginx/letsencrypt:"+proxy.LetsEncryptDir,
		)...)).
		set("depends_on", flowSeq(str("proxy"))).
		set("entrypoint", flowSeq(quotedStrs("/bin/sh", "-c")...)).
		set("command", seq(quoted(escapeInterpolation(script)))).
		setStr("restart", restartPolicy)
	services.set("certbot", certbot.node)

	return encode(document(services, vols))
}

func document(services *mapping, vols *volumeSet) *mapping {
	root := newMapping().set("services", services.node)
	if names := vols.sorted(); len(names) > 0 {
		vm := newMapping()
		for _, v := range names {
			vm.set(v, emptyMap())
		}
		root.set("volumes", vm.node)
	}
	return root
}

func build(context, target string) *yaml.Node {
	return newMapping().setStr("context", context).setStr("target", target).node
}

func missingAllocation(kind, name string) error {
	return fmt.Errorf("no development port allocated for %s %q", kind, name)
}

func polling() *yaml.Node {
	return newMapping().set("CHOKIDAR_USEPOLLING", quoted("true")).node
}

// escapeInterpolation keeps compose from expanding shell variables in s.
func escapeInterpolation(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

// volumeSet collects named volumes; duplicates collapse.
type volumeSet struct {
	names []string
}

func (v *volumeSet) add(names ...string) {
	for _, n := range names {
		if !slices.Contains(v.names, n) {
			v.names = append(v.names, n)
		}
	}
}

func (v *volumeSet) sorted() []string {
	out := slices.Clone(v.names)
	slices.Sort(out)
	return out
}
