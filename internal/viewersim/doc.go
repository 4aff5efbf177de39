// Package viewersim hosts a scriptable stand-in for an embedded
// document viewer.
//
// Ownership boundary:
// - TCP listener speaking the session wire protocol
// - readiness/document-load scripting and heartbeats
// - action handler registry and document state
package viewersim
