// Package command owns queueing and execution concerns.
//
// Ownership boundary:
// - readiness tracking
//
// - queued-command release ordering
//
// - transport dispatch and outcome records
//
// Release order:
// - sweep dispatch order equals queue insertion order within one sweep.
//
// - entries released in different sweeps carry no relative ordering.
//
// The command package does not own the wire protocol; it consumes the
// viewer only through the Transport seam.
package command
