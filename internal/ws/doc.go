// Package ws streams published timetable generations to WebSocket clients.
// The hub implements cache.Listener: every successful publish is pushed to
// all connected clients, and a client receives the current state immediately
// on connect. Failed refresh cycles produce no message — clients keep the
// last generation they were sent.
package ws
