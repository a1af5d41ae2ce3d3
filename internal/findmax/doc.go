// Package findmax searches for the highest sustainable operation rate.
//
// The planner ratchets the target rate upward from a shelf with a growing
// step. Once a frame regresses it rebases on the best rate seen so far with
// a fresh step, a longer sample window and a longer settling time, and stops
// when the remaining gap is no wider than one step.
package findmax
