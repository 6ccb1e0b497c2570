package proxy

import "text/template"

const generatedHeader = "# Generated by stackgen from stack.yaml. Manual edits are overwritten on the next render.\n"

// HTTP server blocks: serve the ACME challenge, redirect everything else to HTTPS.
// A www host redirects straight to its bare host.
var httpTmpl = template.Must(template.New("http").Parse(generatedHeader + `{{range .Routes}}
server {
    listen 80;
    server_name {{.Name}};

    location ^~ /.well-known/acme-challenge/ {
        root {{$.Webroot}};
    }

    location / {
        return 301 https://$host$request_uri;
    }
}
{{- if .WWW}}

server {
    listen 80;
    server_name {{.WWW}};

    location ^~ /.well-known/acme-challenge/ {
        root {{$.Webroot}};
    }

    location / {
        return 301 https://{{.Name}}$request_uri;
    }
}
{{- end}}
{{end -}}
`))

// HTTPS server blocks, staged until certificates exist. The www counterpart
// needs its own certificate because TLS terminates before the redirect.
var httpsTmpl = template.Must(template.New("https").Parse(generatedHeader + `{{range .Routes}}
server {
    listen 443 ssl;
    http2 on;
    server_name {{.Name}};

    ssl_certificate {{$.LiveDir}}/{{.Name}}/fullchain.pem;
    ssl_certificate_key {{$.LiveDir}}/{{.Name}}/privkey.pem;
    include {{$.SSLParams}};

    location / {
        proxy_pass http://{{.Upstream}}:{{.Port}};
        include {{$.ProxyParams}};
    }
}
{{- if .WWW}}

server {
    listen 443 ssl;
    http2 on;
    server_name {{.WWW}};

    ssl_certificate {{$.LiveDir}}/{{.WWW}}/fullchain.pem;
    ssl_certificate_key {{$.LiveDir}}/{{.WWW}}/privkey.pem;
    include {{$.SSLParams}};

    location / {
        return 301 https://{{.Name}}$request_uri;
    }
}
{{- end}}
{{end -}}
`))

// bootstrapTmpl runs in the background of the proxy container. It waits for the
// first host's certificate, promotes the staged HTTPS config and reloads, then
// reloads periodically so renewed certificates are picked up. Reload failures
// are logged and the loop carries on.
var bootstrapTmpl = template.Must(template.New("bootstrap").Parse(`#!/bin/sh
# Generated by stackgen. Promotes the staged HTTPS config once certificates exist.
set -eu
(
  TARGET="{{.Active}}"
  STAGED="{{.Staged}}"
  FIRST_DOMAIN="{{.First}}"
  if [ -n "$FIRST_DOMAIN" ]; then
    while [ ! -f "{{.LiveDir}}/$FIRST_DOMAIN/fullchain.pem" ]; do
      sleep {{.PollSeconds}}
    done
    if [ -f "$STAGED" ]; then
      cp "$STAGED" "$TARGET"
    fi
    nginx -t && nginx -s reload || echo "enable-https: reload failed" >&2
    while :; do
      sleep {{.ReloadSeconds}}
      nginx -s reload || echo "enable-https: periodic reload failed" >&2
    done
  fi
) &
`))

const proxyParams = generatedHeader + `proxy_set_header Host $host;
proxy_set_header X-Real-IP $remote_addr;
proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
proxy_set_header X-Forwarded-Proto $scheme;
proxy_set_header X-Forwarded-Host $host;
proxy_http_version 1.1;

# WebSocket
proxy_set_header Upgrade $http_upgrade;
proxy_set_header Connection "upgrade";

proxy_read_timeout 300;
proxy_connect_timeout 300;
proxy_redirect off;
`

const sslParams = generatedHeader + `ssl_session_cache shared:SSL:10m;
ssl_session_timeout 10m;
ssl_protocols TLSv1.2 TLSv1.3;
ssl_ciphers HIGH:!aNULL:!MD5;
ssl_prefer_server_ciphers on;
add_header Strict-Transport-Security "max-age=31536000; includeSubDomains" always;
`

const dockerfile = `FROM nginx:1.27-alpine
COPY docker-entrypoint.d/ /docker-entrypoint.d/
RUN chmod +x /docker-entrypoint.d/*.sh \
 && sed -i 's/\r$//' /docker-entrypoint.d/*.sh
`
