// Package ratelimit is per-client-IP token bucket middleware for the API
// routes.
//
// State is in-memory and per-instance. It blunts a single client hammering
// the upload or archive endpoints; it does nothing against distributed
// floods, and request bodies are already being read by the time it runs.
// The visitor map is capped so a spray of source addresses cannot grow it
// without bound.
package ratelimit
