package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Response is implemented by every response-side payload variant.
type Response interface {
	Payload
	isResponse()
}

// --- CreateMinersFee / PostTransaction -----------------------------------
// Both handlers return the same shape: a posted transaction's serialized
// bytes. They remain distinct wire kinds (the pool validates the response
// kind matches the request kind) but share an encoding.

type CreateMinersFeeResponse struct {
	SerializedTransaction []byte
}

func (r *CreateMinersFeeResponse) isResponse() {}
func (r *CreateMinersFeeResponse) Kind() Kind  { return KindCreateMinersFee }
func (r *CreateMinersFeeResponse) Size() int   { return SizeVarBytes(r.SerializedTransaction) }
func (r *CreateMinersFeeResponse) Encode(buf []byte) {
	PutVarBytes(buf, r.SerializedTransaction)
}

func DecodeCreateMinersFeeResponse(buf []byte) (*CreateMinersFeeResponse, error) {
	tx, _, err := GetVarBytes(buf)
	if err != nil {
		return nil, errors.Wrap(err, "create_miners_fee response")
	}
	return &CreateMinersFeeResponse{SerializedTransaction: tx}, nil
}

type PostTransactionResponse struct {
	SerializedTransaction []byte
}

func (r *PostTransactionResponse) isResponse() {}
func (r *PostTransactionResponse) Kind() Kind  { return KindPostTransaction }
func (r *PostTransactionResponse) Size() int   { return SizeVarBytes(r.SerializedTransaction) }
func (r *PostTransactionResponse) Encode(buf []byte) {
	PutVarBytes(buf, r.SerializedTransaction)
}

func DecodePostTransactionResponse(buf []byte) (*PostTransactionResponse, error) {
	tx, _, err := GetVarBytes(buf)
	if err != nil {
		return nil, errors.Wrap(err, "post_transaction response")
	}
	return &PostTransactionResponse{SerializedTransaction: tx}, nil
}

// --- VerifyTransactions ----------------------------------------------------

type VerifyTransactionsResponse struct {
	Verified bool
}

func (r *VerifyTransactionsResponse) isResponse() {}
func (r *VerifyTransactionsResponse) Kind() Kind  { return KindVerifyTransactions }
func (r *VerifyTransactionsResponse) Size() int   { return 1 }
func (r *VerifyTransactionsResponse) Encode(buf []byte) {
	if r.Verified {
		buf[0] = 1
	} else {
		buf[0] = 0
	}
}

func DecodeVerifyTransactionsResponse(buf []byte) (*VerifyTransactionsResponse, error) {
	if len(buf) < 1 {
		return nil, errors.Wrap(ErrMalformedFrame, "verify_transactions response")
	}
	return &VerifyTransactionsResponse{Verified: buf[0] == 1}, nil
}

// --- DecryptNotes (sparse response) --------------------------------------
//
// The logical result is a fixed-length array of length
// len(accounts)*len(notes), overwhelmingly empty (a note decrypts for at
// most one account, usually none). Dense encoding would cost one byte per
// slot; sparse encoding costs 4 bytes (the index) plus the note per
// *populated* slot, after an 8-byte header (declared length and entry
// count).

type DecryptedNote struct {
	Value      uint64
	Memo       string // empty unless the request set IncludeMemos
	Nullifier  [32]byte
	ForSpender bool
}

func (n DecryptedNote) size() int {
	return 8 + SizeVarString(n.Memo) + 32 + 1
}

func (n DecryptedNote) encode(buf []byte) int {
	binary.LittleEndian.PutUint64(buf[0:8], n.Value)
	w := 8
	w += PutVarString(buf[w:], n.Memo)
	w += copy(buf[w:], n.Nullifier[:])
	if n.ForSpender {
		buf[w] = 1
	} else {
		buf[w] = 0
	}
	return w + 1
}

func decodeDecryptedNote(buf []byte) (DecryptedNote, int, error) {
	if len(buf) < 8 {
		return DecryptedNote{}, 0, errors.Wrap(ErrMalformedFrame, "decrypted note: short value")
	}
	n := DecryptedNote{Value: binary.LittleEndian.Uint64(buf[0:8])}
	w := 8
	memo, used, err := GetVarString(buf[w:])
	if err != nil {
		return DecryptedNote{}, 0, errors.Wrap(err, "decrypted note: memo")
	}
	n.Memo = memo
	w += used
	if len(buf[w:]) < 33 {
		return DecryptedNote{}, 0, errors.Wrap(ErrMalformedFrame, "decrypted note: short nullifier/flag")
	}
	w += copy(n.Nullifier[:], buf[w:w+32])
	n.ForSpender = buf[w] == 1
	w++
	return n, w, nil
}

// DecryptNotesResponse is a sparse array of length Length; Entries maps a
// populated index to its decrypted note.
type DecryptNotesResponse struct {
	Length  uint32
	Entries map[uint32]DecryptedNote
}

func (r *DecryptNotesResponse) isResponse() {}
func (r *DecryptNotesResponse) Kind() Kind  { return KindDecryptNotes }

func (r *DecryptNotesResponse) Size() int {
	size := 4 + 4 // Length, count of entries
	for _, n := range r.Entries {
		size += 4 + n.size() // index + note
	}
	return size
}

func (r *DecryptNotesResponse) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], r.Length)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(r.Entries)))
	n := 8
	// Deterministic order for reproducible frames (and simpler tests):
	// ascending index.
	indices := make([]uint32, 0, len(r.Entries))
	for idx := range r.Entries {
		indices = append(indices, idx)
	}
	sortUint32(indices)
	for _, idx := range indices {
		binary.LittleEndian.PutUint32(buf[n:n+4], idx)
		n += 4
		n += r.Entries[idx].encode(buf[n:])
	}
}

func DecodeDecryptNotesResponse(buf []byte) (*DecryptNotesResponse, error) {
	if len(buf) < 8 {
		return nil, errors.Wrap(ErrMalformedFrame, "decrypt_notes response: short header")
	}
	length := binary.LittleEndian.Uint32(buf[0:4])
	count := binary.LittleEndian.Uint32(buf[4:8])
	n := 8
	entries := make(map[uint32]DecryptedNote, count)
	for i := uint32(0); i < count; i++ {
		if len(buf[n:]) < 4 {
			return nil, errors.Wrapf(ErrMalformedFrame, "decrypt_notes response: entry %d short index", i)
		}
		idx := binary.LittleEndian.Uint32(buf[n : n+4])
		n += 4
		note, used, err := decodeDecryptedNote(buf[n:])
		if err != nil {
			return nil, errors.Wrapf(err, "decrypt_notes response: entry %d", i)
		}
		entries[idx] = note
		n += used
	}
	return &DecryptNotesResponse{Length: length, Entries: entries}, nil
}

func sortUint32(s []uint32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// --- Sleep -----------------------------------------------------------------

type SleepResponse struct {
	Aborted bool
}

func (r *SleepResponse) isResponse() {}
func (r *SleepResponse) Kind() Kind  { return KindSleep }
func (r *SleepResponse) Size() int   { return 1 }
func (r *SleepResponse) Encode(buf []byte) {
	if r.Aborted {
		buf[0] = 1
	} else {
		buf[0] = 0
	}
}

func DecodeSleepResponse(buf []byte) (*SleepResponse, error) {
	if len(buf) < 1 {
		return nil, errors.Wrap(ErrMalformedFrame, "sleep response")
	}
	return &SleepResponse{Aborted: buf[0] == 1}, nil
}

// --- SubmitTelemetry (empty response) --------------------------------------

type SubmitTelemetryResponse struct{}

func (r *SubmitTelemetryResponse) isResponse()        {}
func (r *SubmitTelemetryResponse) Kind() Kind         { return KindSubmitTelemetry }
func (r *SubmitTelemetryResponse) Size() int          { return 0 }
func (r *SubmitTelemetryResponse) Encode(buf []byte)  {}

func DecodeSubmitTelemetryResponse(buf []byte) (*SubmitTelemetryResponse, error) {
	return &SubmitTelemetryResponse{}, nil
}

// --- JobError ---------------------------------------------------------------

// JobErrorPayload replaces any normal response when a handler, or the
// worker's own dispatch loop, fails. Stack and Code are optional.
type JobErrorPayload struct {
	Type    string
	Message string
	Stack   string
	Code    string
}

func (r *JobErrorPayload) isResponse() {}
func (r *JobErrorPayload) Kind() Kind  { return KindJobError }

func (r *JobErrorPayload) Size() int {
	return SizeVarString(r.Type) + SizeVarString(r.Message) + SizeVarString(r.Stack) + SizeVarString(r.Code)
}

func (r *JobErrorPayload) Encode(buf []byte) {
	n := PutVarString(buf, r.Type)
	n += PutVarString(buf[n:], r.Message)
	n += PutVarString(buf[n:], r.Stack)
	PutVarString(buf[n:], r.Code)
}

func DecodeJobErrorPayload(buf []byte) (*JobErrorPayload, error) {
	typ, n, err := GetVarString(buf)
	if err != nil {
		return nil, errors.Wrap(err, "job_error: type")
	}
	msg, used, err := GetVarString(buf[n:])
	if err != nil {
		return nil, errors.Wrap(err, "job_error: message")
	}
	n += used
	stack, used, err := GetVarString(buf[n:])
	if err != nil {
		return nil, errors.Wrap(err, "job_error: stack")
	}
	n += used
	code, _, err := GetVarString(buf[n:])
	if err != nil {
		return nil, errors.Wrap(err, "job_error: code")
	}
	return &JobErrorPayload{Type: typ, Message: msg, Stack: stack, Code: code}, nil
}

// --- JobAborted (control message) -------------------------------------------

// JobAbortedPayload carries no body; the job id it refers to is the
// frame's header job_id.
type JobAbortedPayload struct{}

func (r *JobAbortedPayload) isResponse()       {}
func (r *JobAbortedPayload) isRequest()        {}
func (r *JobAbortedPayload) Kind() Kind        { return KindJobAborted }
func (r *JobAbortedPayload) Size() int         { return 0 }
func (r *JobAbortedPayload) Encode(buf []byte) {}

func DecodeJobAbortedPayload(buf []byte) (*JobAbortedPayload, error) {
	return &JobAbortedPayload{}, nil
}
