// Package simframe drives a running flywheel through a sequence of simulation
// frames.
//
// A frame applies a fixed set of parameters, waits for the workload to settle,
// samples a capture window and records the result in an append-only Journal.
// A Planner reads the journal and decides the next frame or ends the search.
// All of it runs on a single goroutine; the flywheel itself is only touched
// through fire-and-forget events and metric reads.
package simframe
