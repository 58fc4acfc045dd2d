package registry

import "fmt"

// HandlerError is the error a handler returns for a request-level failure
// (bad key, malformed note, proof-build failure). The worker serializes it
// into a wire.JobErrorPayload; it never crosses the wire as a Go error
// value directly.
type HandlerError struct {
	Message string
	Code    string
}

func (e *HandlerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}
