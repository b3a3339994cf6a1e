// Package httpmw holds the middleware for the public listener.
//
// httpserver.NewHandler composes it outermost first: recover, security
// headers, request id, client ip, rate limit, tracing, metrics, request
// logger, access log, then the chi router. Query strings and user agents
// are kept out of log fields.
package httpmw
