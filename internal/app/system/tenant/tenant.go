// Package tenant maps {org}.rootdomain/app/* requests onto the internal
// /org/{org}/* routes before the router sees them.
package tenant

import (
	"context"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Headers set on both the rewritten request and the response.
const (
	HeaderSubdomain = "X-Subdomain"
	HeaderPathname  = "X-Pathname"
)

type ctxKey string

const infoKey ctxKey = "tenant"

// Info describes how the request was resolved.
type Info struct {
	Subdomain    string // "" on the bare root domain
	OriginalPath string
	Path         string // path after rewriting
	Rewritten    bool
}

// Subdomain returns the tenant label of host under rootDomain. The bare root
// domain, its www. variant, hosts outside rootDomain and nested labels
// ("a.b.example.com") all yield "".
func Subdomain(host, rootDomain string) string {
	host = strings.ToLower(stripPort(host))
	root := strings.ToLower(stripPort(rootDomain))
	if host == "" || root == "" || host == root {
		return ""
	}
	sub, ok := strings.CutSuffix(host, "."+root)
	if !ok || sub == "" || sub == "www" || strings.Contains(sub, ".") {
		return ""
	}
	return sub
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// Rewrite swaps appPrefix for /org/{subdomain} when path is appPrefix or lies
// beneath it. Nothing is rewritten without a subdomain.
//
//	Rewrite("/app/groups/5/posts", "acme", "/app") == "/org/acme/groups/5/posts", true
func Rewrite(path, subdomain, appPrefix string) (string, bool) {
	if subdomain == "" {
		return path, false
	}
	prefix := "/" + strings.Trim(appPrefix, "/")
	if prefix == "/" {
		return path, false
	}
	switch {
	case path == prefix:
		return "/org/" + subdomain, true
	case strings.HasPrefix(path, prefix+"/"):
		return "/org/" + subdomain + path[len(prefix):], true
	}
	return path, false
}

// Middleware resolves the tenant, rewrites the path and sets the
// X-Subdomain/X-Pathname headers. Client-supplied copies of those headers
// are discarded.
func Middleware(rootDomain, appPrefix string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub := Subdomain(r.Host, rootDomain)
			info := &Info{Subdomain: sub, OriginalPath: r.URL.Path, Path: r.URL.Path}

			r2 := r.WithContext(context.WithValue(r.Context(), infoKey, info))
			r2.Header = r.Header.Clone()
			r2.Header.Del(HeaderSubdomain)

			if p, ok := Rewrite(r.URL.Path, sub, appPrefix); ok {
				u := *r.URL
				u.Path = p
				if u.RawPath != "" {
					u.RawPath, _ = Rewrite(u.RawPath, sub, appPrefix)
				}
				r2.URL = &u
				info.Path = p
				info.Rewritten = true
				logger.Debug("tenant rewrite",
					zap.String("subdomain", sub),
					zap.String("from", info.OriginalPath),
					zap.String("to", p))
			}

			if sub != "" {
				r2.Header.Set(HeaderSubdomain, sub)
				w.Header().Set(HeaderSubdomain, sub)
			}
			r2.Header.Set(HeaderPathname, info.Path)
			w.Header().Set(HeaderPathname, info.Path)

			next.ServeHTTP(w, r2)
		})
	}
}

// FromRequest returns the resolved tenant info, or nil outside Middleware.
func FromRequest(r *http.Request) *Info {
	return FromContext(r.Context())
}

func FromContext(ctx context.Context) *Info {
	if info, ok := ctx.Value(infoKey).(*Info); ok {
		return info
	}
	return nil
}

// WithTestInfo attaches info to r. Test helper.
func WithTestInfo(r *http.Request, info Info) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), infoKey, &info))
}
