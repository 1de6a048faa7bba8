// Package timetable defines the in-memory timetable data model: lessons,
// immutable snapshots, and the diff between two consecutive snapshots.
// Snapshots and diffs are values — once created they are never mutated.
package timetable
