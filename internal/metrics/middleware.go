package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// unmatchedRoute labels requests no router claimed. Raw paths would make
// label cardinality unbounded.
const unmatchedRoute = "unmatched"

// countingWriter remembers the status and counts body bytes.
type countingWriter struct {
	http.ResponseWriter
	code  int
	bytes int64
}

func (w *countingWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *countingWriter) Write(p []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *countingWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *countingWriter) status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}

type routeCtxKey struct{}

// WithRoute records a route label for requests served outside a chi
// router.
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeCtxKey{}, route)
}

func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	if s, ok := r.Context().Value(routeCtxKey{}).(string); ok && s != "" {
		return s
	}
	return unmatchedRoute
}

// Middleware records inflight, count, latency, response size and 5xx
// errors per method and route pattern. It seeds a chi route context so
// the pattern chi resolves downstream is visible here afterwards.
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.RouteContext(r.Context()) == nil {
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, chi.NewRouteContext()))
		}

		m.inflight.Inc()
		defer m.inflight.Dec()

		start := time.Now()
		cw := &countingWriter{ResponseWriter: w}
		next.ServeHTTP(cw, r)
		elapsed := time.Since(start).Seconds()

		route := routeLabel(r)
		code := cw.status()
		m.reqTotal.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
		observe(r.Context(), m.reqDur.WithLabelValues(r.Method, route), elapsed)
		m.respBytes.WithLabelValues(r.Method, route).Observe(float64(cw.bytes))
		if code >= http.StatusInternalServerError {
			m.errors.WithLabelValues(r.Method, route).Inc()
		}
	})
}

// observe attaches the trace id of a sampled span as an exemplar.
func observe(ctx context.Context, o prometheus.Observer, v float64) {
	sc := trace.SpanContextFromContext(ctx)
	eo, ok := o.(prometheus.ExemplarObserver)
	if !ok || !sc.IsValid() || !sc.IsSampled() {
		o.Observe(v)
		return
	}
	eo.ObserveWithExemplar(v, prometheus.Labels{"trace_id": sc.TraceID().String()})
}
