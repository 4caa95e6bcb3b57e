// Package brand maps the secondary storefront hostname onto the shared
// route tree so one server backs both sites.
package brand

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// passthroughPrefixes are served identically on every hostname.
var passthroughPrefixes = []string{"/api/", "/webhooks/", "/static/", "/assets/"}

// Config names the two hostnames and where the secondary brand's pages live
// in the route tree.
type Config struct {
	// PrimaryHost serves the route tree as-is.
	PrimaryHost string
	// SecondaryHost has its root-relative page paths rewritten under
	// RoutePrefix, so "/" on the flat-fee brand serves RoutePrefix's index.
	SecondaryHost string
	RoutePrefix   string
}

// Rewrite returns middleware that rewrites page requests arriving on the
// secondary hostname. API, webhook, and asset paths are shared and pass
// through on either host, as does everything already under the prefix.
func Rewrite(cfg Config) func(http.Handler) http.Handler {
	prefix := strings.TrimSuffix(cfg.RoutePrefix, "/")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.SecondaryHost == "" || prefix == "" || hostname(r.Host) != cfg.SecondaryHost {
				next.ServeHTTP(w, r)
				return
			}

			path := r.URL.Path
			if isPassthrough(path) || strings.HasPrefix(path, prefix+"/") || path == prefix {
				next.ServeHTTP(w, r)
				return
			}

			rewritten := prefix + path
			if path == "/" {
				rewritten = prefix
			}
			zap.L().Debug("brand rewrite",
				zap.String("host", r.Host),
				zap.String("from", path),
				zap.String("to", rewritten),
			)
			r2 := r.Clone(r.Context())
			r2.URL.Path = rewritten
			next.ServeHTTP(w, r2)
		})
	}
}

func isPassthrough(path string) bool {
	for _, p := range passthroughPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return path == "/health"
}

// hostname strips an optional port.
func hostname(host string) string {
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return strings.Trim(host, "[]")
}
