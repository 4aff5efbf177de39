// Package server owns the coordinator's HTTP surface.
//
// Ownership boundary:
// - queue and command REST routes
// - health/readiness/metrics endpoints
// - bearer auth on mutating routes
//
// The server does not own queue semantics; it proxies the coordinator.
package server
