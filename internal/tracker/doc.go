// Package tracker owns the vision target tracker.
//
// Responsibilities: frame-to-frame association of field-frame candidate
// poses to persistent targets, a time-windowed rolling average pose per
// target, staleness eviction, and best-target selection relative to the
// robot's current heading.
// Key types: Tracker, TrackedTarget, Sample.
//
// A Tracker is owned by the control loop and is not safe for concurrent
// use. Readers on other goroutines consume copies published by the loop.
// No logging, I/O or blocking happens in this package.
package tracker
