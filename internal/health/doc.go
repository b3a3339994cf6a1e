// Package health provides readiness and liveness probes and the HTTP
// handlers that expose them.
//
// Probes compose with [All]. [Named] prefixes a dependency name onto the
// failure reason and [WithTimeout] bounds a slow backend check. During
// shutdown a [ShutdownGate] fails readiness first so load balancers stop
// routing new uploads before in-flight requests drain.
package health
