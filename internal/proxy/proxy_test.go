package proxy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flo-mic/stackgen/internal/artifact"
	"github.com/flo-mic/stackgen/internal/descriptor"
	"github.com/flo-mic/stackgen/internal/naming"
)

func shopHosts(t *testing.T, pg bool) naming.HostSet {
	t.Helper()
	d := descriptor.New("acme", "example.com", "ops@example.com")
	d.DataStores.Postgres = pg
	d, err := d.AddFrontend("shop", descriptor.KindSPA)
	require.NoError(t, err)
	d, err = d.AddBackend("orders")
	require.NoError(t, err)
	hs, err := naming.DeriveHosts(d)
	require.NoError(t, err)
	return hs
}

func files(t *testing.T, hs naming.HostSet) map[string]artifact.File {
	t.Helper()
	out, err := Render(hs)
	require.NoError(t, err)
	m := make(map[string]artifact.File, len(out))
	for _, f := range out {
		m[f.Path] = f
	}
	return m
}

func TestRender_Files(t *testing.T) {
	m := files(t, shopHosts(t, true))
	for _, p := range []string{HTTPConf, StagedHTTPSConf, SSLParamsConf, ProxyParamsConf, Dockerfile, BootstrapScript} {
		assert.Contains(t, m, p)
	}
	assert.NotContains(t, m, ActiveHTTPSConf, "HTTPS must only be staged")
	assert.EqualValues(t, 0755, m[BootstrapScript].Mode)
}

func TestRender_HTTP(t *testing.T) {
	conf := string(files(t, shopHosts(t, true))[HTTPConf].Data)

	for _, host := range []string{"shop.example.com", "www.shop.example.com", "api.orders.example.com", "api.socket.acme.example.com", "pgadmin.example.com"} {
		assert.Contains(t, conf, "server_name "+host+";")
	}
	assert.Equal(t, 5, strings.Count(conf, "listen 80;"))
	assert.Equal(t, 5, strings.Count(conf, "location ^~ /.well-known/acme-challenge/"))
	assert.Contains(t, conf, "return 301 https://shop.example.com$request_uri;", "www redirects to the bare host")
	assert.NotContains(t, conf, "443")
}

func TestRender_StagedHTTPS(t *testing.T) {
	conf := string(files(t, shopHosts(t, false))[StagedHTTPSConf].Data)

	assert.Equal(t, 4, strings.Count(conf, "listen 443 ssl;"))
	assert.Contains(t, conf, "proxy_pass http://front_shop:80;")
	assert.Contains(t, conf, "proxy_pass http://api_orders:80;")
	assert.Contains(t, conf, "proxy_pass http://api_socket:80;")
	assert.Contains(t, conf, "ssl_certificate /etc/letsencrypt/live/www.shop.example.com/fullchain.pem;")
	assert.Contains(t, conf, "include /etc/nginx/proxy_params.conf;")
	assert.NotContains(t, conf, "pgadmin")
}

func TestRender_ProxyParams(t *testing.T) {
	params := string(files(t, naming.HostSet{})[ProxyParamsConf].Data)
	assert.Contains(t, params, "proxy_set_header Upgrade $http_upgrade;")
	assert.Contains(t, params, `proxy_set_header Connection "upgrade";`)
	assert.Contains(t, params, "proxy_read_timeout 300;")
	assert.Contains(t, params, "proxy_connect_timeout 300;")
}

func TestRender_Bootstrap(t *testing.T) {
	script := string(files(t, shopHosts(t, true))[BootstrapScript].Data)

	assert.True(t, strings.HasPrefix(script, "#!/bin/sh\n"))
	assert.Contains(t, script, `FIRST_DOMAIN="api.orders.example.com"`, "first host of the sorted set")
	assert.Contains(t, script, "sleep 5")
	assert.Contains(t, script, "sleep 21600")
	assert.Contains(t, script, `cp "$STAGED" "$TARGET"`)
	assert.Contains(t, script, `STAGED="/etc/nginx/conf.d/reverse-proxy.https.conf.disabled"`)
	assert.Contains(t, script, `TARGET="/etc/nginx/conf.d/reverse-proxy.https.conf"`)
	assert.Contains(t, script, "nginx -t && nginx -s reload ||")
	assert.True(t, strings.HasSuffix(script, ") &\n"), "runs in the background")
}

func TestRender_Deterministic(t *testing.T) {
	a, err := Render(shopHosts(t, true))
	require.NoError(t, err)
	b, err := Render(shopHosts(t, true))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRender_Empty(t *testing.T) {
	m := files(t, naming.HostSet{})
	assert.NotContains(t, string(m[HTTPConf].Data), "server {")
	assert.Contains(t, string(m[BootstrapScript].Data), `FIRST_DOMAIN=""`)
}

func TestCertbotScript(t *testing.T) {
	script := CertbotScript([]string{"a.example.com", "b.example.com"}, "ops@example.com", false)

	assert.Contains(t, script, "for d in 'a.example.com' 'b.example.com'; do certbot certonly")
	assert.Contains(t, script, "--email 'ops@example.com'")
	assert.Contains(t, script, "--webroot -w /var/www/certbot")
	assert.Contains(t, script, "certbot renew")
	assert.Contains(t, script, "sleep 12h")
	assert.NotContains(t, script, "--staging")

	staging := CertbotScript([]string{"a.example.com"}, "ops@example.com", true)
	assert.Contains(t, staging, "--staging")
}

func TestCertbotScript_NoHosts(t *testing.T) {
	script := CertbotScript(nil, "ops@example.com", false)
	assert.NotContains(t, script, "certonly")
	assert.Contains(t, script, "certbot renew")
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}
