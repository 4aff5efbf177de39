// Package host owns the coordinator process lifecycle.
//
// Ownership boundary:
// - process wiring: coordinator, HTTP surface, viewer bridge
// - bridge policy (disabled, auto, required)
// - signal handling and heartbeat logging
//
// The host does not own queue or wire semantics; those live in
// internal/command and internal/bridge.
package host
