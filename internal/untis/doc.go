// Package untis fetches the current timetable from a WebUntis instance.
// It speaks the JSON-RPC session API (authenticate/logout) and the public
// weekly timetable endpoint, and normalizes the provider's payload into
// timetable.Snapshot values. The rest of the system never sees
// WebUntis-specific field names or encodings.
package untis
