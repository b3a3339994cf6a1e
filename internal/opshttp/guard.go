package opshttp

import (
	"net"
	"net/http"
	"net/netip"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/log"
)

// requireNonPublicNetwork rejects callers whose remote address is not
// loopback, private or link-local.
func requireNonPublicNetwork(L log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			forbidden(w, r, L, "unparseable remote addr")
			return
		}
		addr, err := netip.ParseAddr(host)
		if err != nil {
			forbidden(w, r, L, "invalid remote ip")
			return
		}
		addr = addr.Unmap()
		if !(addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast()) {
			forbidden(w, r, L, "public remote ip")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func forbidden(w http.ResponseWriter, r *http.Request, L log.Logger, reason string) {
	L.Warn(r.Context(), "ops request rejected", "reason", reason, "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	http.Error(w, "forbidden", http.StatusForbidden)
}
