package wire

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Request is implemented by every request-side payload variant.
type Request interface {
	Payload
	isRequest()
}

// KeySize is the fixed width of a spend key / view key in this protocol
// (32 bytes, matching the common Ed25519/Sapling key width used by the
// opaque crypto handlers this pool dispatches to).
const KeySize = 32

// --- CreateMinersFee ---------------------------------------------------

type CreateMinersFeeRequest struct {
	Amount             int64
	Memo               string
	SpendKey           [KeySize]byte
	TransactionVersion uint8
}

func (r *CreateMinersFeeRequest) isRequest() {}
func (r *CreateMinersFeeRequest) Kind() Kind { return KindCreateMinersFee }

func (r *CreateMinersFeeRequest) Size() int {
	return 8 + SizeVarString(r.Memo) + KeySize + 1
}

func (r *CreateMinersFeeRequest) Encode(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(r.Amount))
	n := 8
	n += PutVarString(buf[n:], r.Memo)
	n += copy(buf[n:], r.SpendKey[:])
	buf[n] = r.TransactionVersion
}

func DecodeCreateMinersFeeRequest(buf []byte) (*CreateMinersFeeRequest, error) {
	if len(buf) < 8 {
		return nil, errors.Wrap(ErrMalformedFrame, "create_miners_fee: short amount")
	}
	r := &CreateMinersFeeRequest{Amount: int64(binary.LittleEndian.Uint64(buf[0:8]))}
	n := 8
	memo, used, err := GetVarString(buf[n:])
	if err != nil {
		return nil, errors.Wrap(err, "create_miners_fee: memo")
	}
	r.Memo = memo
	n += used
	if len(buf[n:]) < KeySize+1 {
		return nil, errors.Wrap(ErrMalformedFrame, "create_miners_fee: short key/version")
	}
	copy(r.SpendKey[:], buf[n:n+KeySize])
	n += KeySize
	r.TransactionVersion = buf[n]
	return r, nil
}

// --- PostTransaction -----------------------------------------------------

type PostTransactionRequest struct {
	RawTransaction []byte
	SpendingKey    [KeySize]byte
}

func (r *PostTransactionRequest) isRequest() {}
func (r *PostTransactionRequest) Kind() Kind { return KindPostTransaction }

func (r *PostTransactionRequest) Size() int {
	return SizeVarBytes(r.RawTransaction) + KeySize
}

func (r *PostTransactionRequest) Encode(buf []byte) {
	n := PutVarBytes(buf, r.RawTransaction)
	copy(buf[n:], r.SpendingKey[:])
}

func DecodePostTransactionRequest(buf []byte) (*PostTransactionRequest, error) {
	raw, n, err := GetVarBytes(buf)
	if err != nil {
		return nil, errors.Wrap(err, "post_transaction: raw transaction")
	}
	if len(buf[n:]) < KeySize {
		return nil, errors.Wrap(ErrMalformedFrame, "post_transaction: short spending key")
	}
	r := &PostTransactionRequest{RawTransaction: raw}
	copy(r.SpendingKey[:], buf[n:n+KeySize])
	return r, nil
}

// --- VerifyTransactions ----------------------------------------------------

type VerifyTransactionsRequest struct {
	Transactions [][]byte
	MintOwners   []string
}

func (r *VerifyTransactionsRequest) isRequest() {}
func (r *VerifyTransactionsRequest) Kind() Kind { return KindVerifyTransactions }

func (r *VerifyTransactionsRequest) Size() int {
	size := 4 + 4
	for _, tx := range r.Transactions {
		size += SizeVarBytes(tx)
	}
	for _, o := range r.MintOwners {
		size += SizeVarString(o)
	}
	return size
}

func (r *VerifyTransactionsRequest) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(r.Transactions)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(r.MintOwners)))
	n := 8
	for _, tx := range r.Transactions {
		n += PutVarBytes(buf[n:], tx)
	}
	for _, o := range r.MintOwners {
		n += PutVarString(buf[n:], o)
	}
}

func DecodeVerifyTransactionsRequest(buf []byte) (*VerifyTransactionsRequest, error) {
	if len(buf) < 8 {
		return nil, errors.Wrap(ErrMalformedFrame, "verify_transactions: short counts")
	}
	numTx := binary.LittleEndian.Uint32(buf[0:4])
	numOwners := binary.LittleEndian.Uint32(buf[4:8])
	n := 8
	r := &VerifyTransactionsRequest{
		Transactions: make([][]byte, 0, numTx),
		MintOwners:   make([]string, 0, numOwners),
	}
	for i := uint32(0); i < numTx; i++ {
		tx, used, err := GetVarBytes(buf[n:])
		if err != nil {
			return nil, errors.Wrapf(err, "verify_transactions: tx %d", i)
		}
		r.Transactions = append(r.Transactions, tx)
		n += used
	}
	for i := uint32(0); i < numOwners; i++ {
		o, used, err := GetVarString(buf[n:])
		if err != nil {
			return nil, errors.Wrapf(err, "verify_transactions: mint owner %d", i)
		}
		r.MintOwners = append(r.MintOwners, o)
		n += used
	}
	return r, nil
}

// --- DecryptNotes ------------------------------------------------------

// AccountKeys is one account's inline key block. When a request references
// a shared key table instead (see internal/keytable), this struct is not
// sent on the wire; the worker reconstructs it by offset from the shared
// buffer.
type AccountKeys struct {
	IncomingViewKey [KeySize]byte
	OutgoingViewKey [KeySize]byte
	ViewKey         [KeySize]byte
}

const accountKeysSize = 3 * KeySize

// NoteInput is one encrypted note to attempt decryption against every
// account key.
type NoteInput struct {
	SerializedNote []byte
	HasIndex       bool
	Index          uint32
}

func (n NoteInput) size() int {
	return SizeVarBytes(n.SerializedNote) + 1 + 4
}

func (n NoteInput) encode(buf []byte) int {
	w := PutVarBytes(buf, n.SerializedNote)
	if n.HasIndex {
		buf[w] = 1
	} else {
		buf[w] = 0
	}
	w++
	binary.LittleEndian.PutUint32(buf[w:w+4], n.Index)
	return w + 4
}

func decodeNoteInput(buf []byte) (NoteInput, int, error) {
	raw, n, err := GetVarBytes(buf)
	if err != nil {
		return NoteInput{}, 0, errors.Wrap(err, "note: bytes")
	}
	if len(buf[n:]) < 5 {
		return NoteInput{}, 0, errors.Wrap(ErrMalformedFrame, "note: short index")
	}
	hasIdx := buf[n] == 1
	idx := binary.LittleEndian.Uint32(buf[n+1 : n+5])
	return NoteInput{SerializedNote: raw, HasIndex: hasIdx, Index: idx}, n + 5, nil
}

// DecryptNotesOptions carries the boolean switches a DecryptNotes caller can
// toggle per request.
type DecryptNotesOptions struct {
	// IncludeMemos controls whether decrypted notes carry their memo text
	// (large, rarely needed by the scanner's fast path).
	IncludeMemos bool
	// ForSpender decrypts with the spending-side semantics (the caller
	// owns the note) as opposed to the viewing-side semantics.
	ForSpender bool
}

func (o DecryptNotesOptions) encode() byte {
	var b byte
	if o.IncludeMemos {
		b |= 1 << 0
	}
	if o.ForSpender {
		b |= 1 << 1
	}
	return b
}

func decodeDecryptNotesOptions(b byte) DecryptNotesOptions {
	return DecryptNotesOptions{
		IncludeMemos: b&(1<<0) != 0,
		ForSpender:   b&(1<<1) != 0,
	}
}

// DecryptNotesRequest. When HasSharedKeys is set the AccountKeys block is
// omitted on the wire and the worker looks the table up by
// SharedKeyTableID in its local shared-table registry instead (see
// internal/keytable).
type DecryptNotesRequest struct {
	AccountKeys      []AccountKeys // empty when HasSharedKeys
	HasSharedKeys    bool
	SharedKeyTableID uint64
	Notes            []NoteInput
	Options          DecryptNotesOptions
}

func (r *DecryptNotesRequest) isRequest() {}
func (r *DecryptNotesRequest) Kind() Kind { return KindDecryptNotes }

func (r *DecryptNotesRequest) Size() int {
	size := 1 + 4 + 8 + 4 + 1 // flag, numAccounts, sharedTableID, numNotes, options
	if !r.HasSharedKeys {
		size += len(r.AccountKeys) * accountKeysSize
	}
	for _, n := range r.Notes {
		size += n.size()
	}
	return size
}

func (r *DecryptNotesRequest) Encode(buf []byte) {
	n := 0
	if r.HasSharedKeys {
		buf[n] = 1
	} else {
		buf[n] = 0
	}
	n++
	binary.LittleEndian.PutUint32(buf[n:n+4], uint32(len(r.AccountKeys)))
	n += 4
	binary.LittleEndian.PutUint64(buf[n:n+8], r.SharedKeyTableID)
	n += 8
	if !r.HasSharedKeys {
		for _, ak := range r.AccountKeys {
			n += copy(buf[n:], ak.IncomingViewKey[:])
			n += copy(buf[n:], ak.OutgoingViewKey[:])
			n += copy(buf[n:], ak.ViewKey[:])
		}
	}
	binary.LittleEndian.PutUint32(buf[n:n+4], uint32(len(r.Notes)))
	n += 4
	buf[n] = r.Options.encode()
	n++
	for _, note := range r.Notes {
		n += note.encode(buf[n:])
	}
}

func DecodeDecryptNotesRequest(buf []byte) (*DecryptNotesRequest, error) {
	if len(buf) < 17 {
		return nil, errors.Wrap(ErrMalformedFrame, "decrypt_notes: short header")
	}
	r := &DecryptNotesRequest{HasSharedKeys: buf[0] == 1}
	n := 1
	numAccounts := binary.LittleEndian.Uint32(buf[n : n+4])
	n += 4
	r.SharedKeyTableID = binary.LittleEndian.Uint64(buf[n : n+8])
	n += 8
	if !r.HasSharedKeys {
		r.AccountKeys = make([]AccountKeys, numAccounts)
		for i := uint32(0); i < numAccounts; i++ {
			if len(buf[n:]) < accountKeysSize {
				return nil, errors.Wrapf(ErrMalformedFrame, "decrypt_notes: account %d truncated", i)
			}
			var ak AccountKeys
			n += copy(ak.IncomingViewKey[:], buf[n:n+KeySize])
			n += copy(ak.OutgoingViewKey[:], buf[n:n+KeySize])
			n += copy(ak.ViewKey[:], buf[n:n+KeySize])
			r.AccountKeys[i] = ak
		}
	}
	if len(buf[n:]) < 5 {
		return nil, errors.Wrap(ErrMalformedFrame, "decrypt_notes: short notes header")
	}
	numNotes := binary.LittleEndian.Uint32(buf[n : n+4])
	n += 4
	r.Options = decodeDecryptNotesOptions(buf[n])
	n++
	r.Notes = make([]NoteInput, 0, numNotes)
	for i := uint32(0); i < numNotes; i++ {
		note, used, err := decodeNoteInput(buf[n:])
		if err != nil {
			return nil, errors.Wrapf(err, "decrypt_notes: note %d", i)
		}
		r.Notes = append(r.Notes, note)
		n += used
	}
	return r, nil
}

// --- Sleep (test/diagnostic) ---------------------------------------------

type SleepRequest struct {
	DurationMs int64
	HasError   bool
	Error      string
}

func (r *SleepRequest) isRequest() {}
func (r *SleepRequest) Kind() Kind { return KindSleep }

func (r *SleepRequest) Size() int {
	size := 8 + 1
	if r.HasError {
		size += SizeVarString(r.Error)
	}
	return size
}

func (r *SleepRequest) Encode(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(r.DurationMs))
	n := 8
	if r.HasError {
		buf[n] = 1
		n++
		PutVarString(buf[n:], r.Error)
	} else {
		buf[n] = 0
	}
}

func DecodeSleepRequest(buf []byte) (*SleepRequest, error) {
	if len(buf) < 9 {
		return nil, errors.Wrap(ErrMalformedFrame, "sleep: short body")
	}
	r := &SleepRequest{DurationMs: int64(binary.LittleEndian.Uint64(buf[0:8]))}
	r.HasError = buf[8] == 1
	if r.HasError {
		msg, _, err := GetVarString(buf[9:])
		if err != nil {
			return nil, errors.Wrap(err, "sleep: error message")
		}
		r.Error = msg
	}
	return r, nil
}

// --- SubmitTelemetry ------------------------------------------------------

type TelemetryPoint struct {
	Name      string
	TimestampMs int64
	Fields    map[string]float64
}

func (p TelemetryPoint) size() int {
	size := SizeVarString(p.Name) + 8 + 4
	for k := range p.Fields {
		size += SizeVarString(k) + 8
	}
	return size
}

func (p TelemetryPoint) encode(buf []byte) int {
	n := PutVarString(buf, p.Name)
	binary.LittleEndian.PutUint64(buf[n:n+8], uint64(p.TimestampMs))
	n += 8
	binary.LittleEndian.PutUint32(buf[n:n+4], uint32(len(p.Fields)))
	n += 4
	for k, v := range p.Fields {
		n += PutVarString(buf[n:], k)
		binary.LittleEndian.PutUint64(buf[n:n+8], math.Float64bits(v))
		n += 8
	}
	return n
}

func decodeTelemetryPoint(buf []byte) (TelemetryPoint, int, error) {
	name, n, err := GetVarString(buf)
	if err != nil {
		return TelemetryPoint{}, 0, errors.Wrap(err, "telemetry point: name")
	}
	if len(buf[n:]) < 12 {
		return TelemetryPoint{}, 0, errors.Wrap(ErrMalformedFrame, "telemetry point: short body")
	}
	p := TelemetryPoint{Name: name, TimestampMs: int64(binary.LittleEndian.Uint64(buf[n : n+8]))}
	n += 8
	numFields := binary.LittleEndian.Uint32(buf[n : n+4])
	n += 4
	p.Fields = make(map[string]float64, numFields)
	for i := uint32(0); i < numFields; i++ {
		k, used, err := GetVarString(buf[n:])
		if err != nil {
			return TelemetryPoint{}, 0, errors.Wrapf(err, "telemetry point: field %d", i)
		}
		n += used
		if len(buf[n:]) < 8 {
			return TelemetryPoint{}, 0, errors.Wrap(ErrMalformedFrame, "telemetry point: short field value")
		}
		p.Fields[k] = math.Float64frombits(binary.LittleEndian.Uint64(buf[n : n+8]))
		n += 8
	}
	return p, n, nil
}

type SubmitTelemetryRequest struct {
	Points   []TelemetryPoint
	Graffiti string
	ApiHost  string
}

func (r *SubmitTelemetryRequest) isRequest() {}
func (r *SubmitTelemetryRequest) Kind() Kind { return KindSubmitTelemetry }

func (r *SubmitTelemetryRequest) Size() int {
	size := 4 + SizeVarString(r.Graffiti) + SizeVarString(r.ApiHost)
	for _, p := range r.Points {
		size += p.size()
	}
	return size
}

func (r *SubmitTelemetryRequest) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(r.Points)))
	n := 4
	for _, p := range r.Points {
		n += p.encode(buf[n:])
	}
	n += PutVarString(buf[n:], r.Graffiti)
	PutVarString(buf[n:], r.ApiHost)
}

func DecodeSubmitTelemetryRequest(buf []byte) (*SubmitTelemetryRequest, error) {
	if len(buf) < 4 {
		return nil, errors.Wrap(ErrMalformedFrame, "submit_telemetry: short count")
	}
	numPoints := binary.LittleEndian.Uint32(buf[0:4])
	n := 4
	r := &SubmitTelemetryRequest{Points: make([]TelemetryPoint, 0, numPoints)}
	for i := uint32(0); i < numPoints; i++ {
		p, used, err := decodeTelemetryPoint(buf[n:])
		if err != nil {
			return nil, errors.Wrapf(err, "submit_telemetry: point %d", i)
		}
		r.Points = append(r.Points, p)
		n += used
	}
	graffiti, used, err := GetVarString(buf[n:])
	if err != nil {
		return nil, errors.Wrap(err, "submit_telemetry: graffiti")
	}
	r.Graffiti = graffiti
	n += used
	apiHost, _, err := GetVarString(buf[n:])
	if err != nil {
		return nil, errors.Wrap(err, "submit_telemetry: api_host")
	}
	r.ApiHost = apiHost
	return r, nil
}
