// Package session owns host<->viewer wire protocol helpers.
//
// Ownership boundary:
// - request/response envelope shapes and validation
// - readiness notice shapes
// - retry/backoff and reliability defaults
package session
