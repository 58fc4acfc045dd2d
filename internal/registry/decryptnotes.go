package registry

import (
	"bytes"
	"context"
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/ironforge/workerpool/internal/keytable"
	"github.com/ironforge/workerpool/internal/wire"
)

// Decryptor is the stateful half of the DecryptNotes stand-in: it needs
// the shared key-table registry to resolve requests that reference a
// shared table instead of carrying keys inline. Every other handler in
// this package is a pure function; this one is a method value so it can
// close over that one piece of shared state without a package global.
type Decryptor struct {
	shared *keytable.Registry
}

func NewDecryptor(shared *keytable.Registry) *Decryptor {
	return &Decryptor{shared: shared}
}

// noteHeaderSize is the fixed prefix of the synthetic "encrypted note"
// format this stand-in decrypts: a 32-byte target view key, followed by an
// 8-byte LE value, followed by a varstring memo. Real Sapling/Orchard note
// decryption is out of scope here; this format exists so the handler's
// matching logic — and the sparse response encoding it feeds — is
// exercised by a real, deterministic algorithm instead of a stub that
// always returns the same canned answer.
const noteHeaderSize = wire.KeySize + 8

// Handle implements registry.Handler for KindDecryptNotes.
func (d *Decryptor) Handle(ctx context.Context, req wire.Request) (wire.Response, error) {
	r := req.(*wire.DecryptNotesRequest)

	keys, err := d.resolveKeys(r)
	if err != nil {
		return nil, err
	}

	numAccounts := len(keys)
	numNotes := len(r.Notes)
	entries := make(map[uint32]wire.DecryptedNote)

	for ni, note := range r.Notes {
		if ni&255 == 0 {
			select {
			case <-ctx.Done():
				return &wire.DecryptNotesResponse{
					Length:  uint32(numAccounts * numNotes),
					Entries: entries,
				}, nil
			default:
			}
		}
		target, value, memo, ok := parseSyntheticNote(note.SerializedNote)
		if !ok {
			continue // malformed note: empty entries for every account, not an error
		}
		for ai, ak := range keys {
			matchKey := ak.IncomingViewKey
			if r.Options.ForSpender {
				matchKey = ak.ViewKey
			}
			if !bytes.Equal(target[:], matchKey[:]) {
				continue
			}
			idx := uint32(ni*numAccounts + ai)
			entries[idx] = wire.DecryptedNote{
				Value:      value,
				Memo:       memoOrEmpty(memo, r.Options.IncludeMemos),
				Nullifier:  nullifierFor(ak.ViewKey, note, ni),
				ForSpender: r.Options.ForSpender,
			}
		}
	}

	return &wire.DecryptNotesResponse{
		Length:  uint32(numAccounts * numNotes),
		Entries: entries,
	}, nil
}

func memoOrEmpty(memo string, include bool) string {
	if include {
		return memo
	}
	return ""
}

func nullifierFor(viewKey [wire.KeySize]byte, note wire.NoteInput, noteIndex int) [32]byte {
	h := append(append([]byte{}, viewKey[:]...), note.SerializedNote...)
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], uint64(noteIndex))
	h = append(h, idx[:]...)
	return blake2b.Sum256(h)
}

func parseSyntheticNote(b []byte) (target [wire.KeySize]byte, value uint64, memo string, ok bool) {
	if len(b) < noteHeaderSize {
		return target, 0, "", false
	}
	copy(target[:], b[0:wire.KeySize])
	value = binary.LittleEndian.Uint64(b[wire.KeySize : wire.KeySize+8])
	rest := b[noteHeaderSize:]
	if len(rest) >= 4 {
		n, _, err := wire.GetVarString(rest)
		if err == nil {
			memo = n
		}
	}
	return target, value, memo, true
}

func (d *Decryptor) resolveKeys(r *wire.DecryptNotesRequest) ([]keytable.AccountKeys, error) {
	if !r.HasSharedKeys {
		out := make([]keytable.AccountKeys, len(r.AccountKeys))
		for i, ak := range r.AccountKeys {
			out[i] = keytable.AccountKeys{
				IncomingViewKey: ak.IncomingViewKey,
				OutgoingViewKey: ak.OutgoingViewKey,
				ViewKey:         ak.ViewKey,
			}
		}
		return out, nil
	}
	table, ok := d.shared.Get(r.SharedKeyTableID)
	if !ok {
		return nil, &HandlerError{Message: "unknown shared key table", Code: "invalid_key"}
	}
	out := make([]keytable.AccountKeys, table.Len())
	for i := 0; i < table.Len(); i++ {
		ak, err := table.At(i)
		if err != nil {
			return nil, &HandlerError{Message: err.Error(), Code: "invalid_key"}
		}
		out[i] = ak
	}
	return out, nil
}

// BuildSyntheticNote is a test/fixture helper: it encodes a note that
// decrypts for the account whose incoming view key (or, with forSpender,
// whose full view key) equals targetKey.
func BuildSyntheticNote(targetKey [wire.KeySize]byte, value uint64, memo string) []byte {
	buf := make([]byte, noteHeaderSize+wire.SizeVarString(memo))
	copy(buf[0:wire.KeySize], targetKey[:])
	binary.LittleEndian.PutUint64(buf[wire.KeySize:wire.KeySize+8], value)
	wire.PutVarString(buf[noteHeaderSize:], memo)
	return buf
}
