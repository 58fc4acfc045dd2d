// Package keytable implements the zero-copy shared-key payload used by
// bulk DecryptNotes requests.
//
// The original source passes a SharedArrayBuffer across a JS worker
// boundary and computes manual byte offsets into it, because JS workers
// are separate heaps. A Go worker is a goroutine: it already shares the
// orchestrator's address space. So the "shared memory" primitive here is
// simply an immutable, reference-counted-by-the-garbage-collector []byte —
// passing it to a worker costs a pointer copy, not a buffer copy. The
// three-parallel-block layout and offset arithmetic are kept anyway
// because they let a future socket-based transport serialize the same
// buffer unchanged.
package keytable

import "github.com/pkg/errors"

// KeySize matches wire.KeySize; keytable keeps its own copy and does not
// import wire.
const KeySize = 32

// AccountKeys is one account's key material, as presented to Build.
type AccountKeys struct {
	IncomingViewKey [KeySize]byte
	OutgoingViewKey [KeySize]byte
	ViewKey         [KeySize]byte
}

// Table is an immutable buffer of N accounts' view keys, laid out as three
// contiguous column blocks: incoming-view-key[N], outgoing-view-key[N],
// view-key[N]. It must never be mutated after Build returns; replace it
// wholesale via Registry.Put when the account set changes.
type Table struct {
	n        int
	incoming []byte
	outgoing []byte
	view     []byte
}

// Build lays accounts out into the three parallel blocks.
func Build(accounts []AccountKeys) *Table {
	n := len(accounts)
	t := &Table{
		n:        n,
		incoming: make([]byte, n*KeySize),
		outgoing: make([]byte, n*KeySize),
		view:     make([]byte, n*KeySize),
	}
	for i, a := range accounts {
		copy(t.incoming[i*KeySize:(i+1)*KeySize], a.IncomingViewKey[:])
		copy(t.outgoing[i*KeySize:(i+1)*KeySize], a.OutgoingViewKey[:])
		copy(t.view[i*KeySize:(i+1)*KeySize], a.ViewKey[:])
	}
	return t
}

// Len returns the number of accounts in the table.
func (t *Table) Len() int { return t.n }

// At computes the three offsets for account i and reads that account's
// 96 bytes out of the table — no per-request copy of the whole table, only
// of the one account a handler actually needs.
func (t *Table) At(i int) (AccountKeys, error) {
	if i < 0 || i >= t.n {
		return AccountKeys{}, errors.Errorf("keytable: index %d out of range [0,%d)", i, t.n)
	}
	var ak AccountKeys
	off := i * KeySize
	copy(ak.IncomingViewKey[:], t.incoming[off:off+KeySize])
	copy(ak.OutgoingViewKey[:], t.outgoing[off:off+KeySize])
	copy(ak.ViewKey[:], t.view[off:off+KeySize])
	return ak, nil
}
