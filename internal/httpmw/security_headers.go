package httpmw

import (
	"net/http"
	"strings"
)

// SecurityOptions controls the headers SecurityHeaders sets.
type SecurityOptions struct {
	// FrameAncestors lists origins allowed to embed responses, usually
	// the LMS host. Empty means 'self' only.
	FrameAncestors []string
	// HSTS adds Strict-Transport-Security.
	HSTS bool
}

// SecurityHeaders sets response hardening headers that still allow the
// LMS to iframe unpacked course content. Packages ship their own inline
// scripts so no script-src policy is applied.
func SecurityHeaders(opts SecurityOptions) func(http.Handler) http.Handler {
	ancestors := "'self'"
	if len(opts.FrameAncestors) > 0 {
		ancestors += " " + strings.Join(opts.FrameAncestors, " ")
	}
	csp := "frame-ancestors " + ancestors + "; object-src 'none'; base-uri 'self'"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if opts.HSTS {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			h.Set("Content-Security-Policy", csp)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), geolocation=(), microphone=(), payment=(), usb=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
			next.ServeHTTP(w, r)
		})
	}
}
