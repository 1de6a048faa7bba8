package untis

import "fmt"

// NetError wraps connectivity failures: unreachable host, timeouts,
// unexpected HTTP status. These are transient — the refresher retries them
// on the next scheduled cycle.
type NetError struct {
	Op  string
	Err error
}

func (e *NetError) Error() string { return fmt.Sprintf("untis: %s: %v", e.Op, e.Err) }
func (e *NetError) Unwrap() error { return e.Err }

// AuthError reports rejected credentials or an expired session.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return "untis: auth: " + e.Reason }

// ParseError reports a malformed or unexpectedly shaped upstream payload.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("untis: parse: %s: %v", e.Reason, e.Err)
	}
	return "untis: parse: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }
