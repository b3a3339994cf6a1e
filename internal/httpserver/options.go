package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/health"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/log"
)

type Options struct {
	Logger log.Logger
	Port   int

	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	// RateLimitMW wraps the API routes only.
	RateLimitMW func(http.Handler) http.Handler

	Health    health.Probe
	Readiness health.Probe

	// APIRoutes registers the block API on the root router.
	APIRoutes func(chi.Router)

	// ContentHandler serves unpacked trees under ContentPrefix.
	ContentPrefix  string
	ContentHandler http.Handler

	ClientIPOpts httpmw.ClientIPOptions
	Security     httpmw.SecurityOptions

	// Zero values use the Default* timeouts.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}
