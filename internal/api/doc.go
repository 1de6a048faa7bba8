// Package api exposes the cached timetable state over REST. Handlers are
// strictly read-only: they render whatever generation the cache store
// currently holds and never trigger a fetch.
package api
