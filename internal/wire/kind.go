// Package wire implements the binary framing used on the pool<->worker
// message port: a fixed 9-byte header (job_id, kind) followed by a
// variant-specific payload.
package wire

// Kind is the one-byte discriminant identifying a request/response variant
// on the wire. The enumeration is closed: adding a value is a
// backward-incompatible wire change (see ProtocolVersion in frame.go).
type Kind uint8

const (
	KindCreateMinersFee Kind = iota + 1
	KindPostTransaction
	KindVerifyTransactions
	KindDecryptNotes
	KindSleep
	KindSubmitTelemetry

	// KindJobError replaces any normal response when a handler, or the
	// worker's dispatch loop itself, fails.
	KindJobError

	// KindJobAborted is a control message, out-of-band on the same
	// channel: pool -> worker to cancel a job, worker -> pool is never
	// sent (the worker simply stops producing a normal response).
	KindJobAborted
)

func (k Kind) String() string {
	switch k {
	case KindCreateMinersFee:
		return "CreateMinersFee"
	case KindPostTransaction:
		return "PostTransaction"
	case KindVerifyTransactions:
		return "VerifyTransactions"
	case KindDecryptNotes:
		return "DecryptNotes"
	case KindSleep:
		return "Sleep"
	case KindSubmitTelemetry:
		return "SubmitTelemetry"
	case KindJobError:
		return "JobError"
	case KindJobAborted:
		return "JobAborted"
	default:
		return "Unknown"
	}
}

// Valid reports whether k is one of the closed set of wire kinds.
func (k Kind) Valid() bool {
	return k >= KindCreateMinersFee && k <= KindJobAborted
}
