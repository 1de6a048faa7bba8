// Package cache owns the last-known timetable state. The Store publishes
// immutable (snapshot, diff) generations behind an atomically swapped
// pointer, so any number of readers observe consistent state without locks
// while the Refresher's periodic fetch→diff→publish cycle runs.
package cache
