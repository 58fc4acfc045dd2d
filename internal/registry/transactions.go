package registry

import (
	"bytes"
	"context"
	"encoding/binary"
	"runtime"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/ironforge/workerpool/internal/wire"
)

// MaxMemoLength bounds a miner's-fee memo.
const MaxMemoLength = 32

// SupportedTransactionVersions is the closed set of transaction_version
// values CreateMinersFee accepts. PostTransaction requests carry no
// version and are not checked against it.
var SupportedTransactionVersions = map[uint8]bool{1: true, 2: true}

// These stand-ins do not implement real note construction or zk-proof
// building. They produce and consume a small self-describing blob whose
// shape ("posted transaction bytes") is stable enough to round-trip through
// PostTransaction and to drive the VerifyTransactions mint-owner check.

const txMagic = 0x5a

// buildPostedTransaction packs a recognizable, hashable blob standing in
// for a posted transaction's serialized bytes.
func buildPostedTransaction(version uint8, amount int64, memo string, spendKey [wire.KeySize]byte) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(txMagic)
	buf.WriteByte(version)
	var amt [8]byte
	binary.LittleEndian.PutUint64(amt[:], uint64(amount))
	buf.Write(amt[:])
	var memoLen [4]byte
	binary.LittleEndian.PutUint32(memoLen[:], uint32(len(memo)))
	buf.Write(memoLen[:])
	buf.WriteString(memo)
	sum := blake2b.Sum256(append(spendKey[:], buf.Bytes()...))
	buf.Write(sum[:])
	return buf.Bytes()
}

// CreateMinersFee is the stand-in for the miner's-fee transaction builder.
func CreateMinersFee(_ context.Context, req wire.Request) (wire.Response, error) {
	r := req.(*wire.CreateMinersFeeRequest)
	if r.Amount < 0 {
		return nil, &HandlerError{Message: "amount must be non-negative", Code: "invalid_amount"}
	}
	if len(r.Memo) > MaxMemoLength {
		return nil, &HandlerError{Message: "memo exceeds max length", Code: "invalid_memo"}
	}
	if !SupportedTransactionVersions[r.TransactionVersion] {
		return nil, &HandlerError{Message: "unsupported transaction version", Code: "invalid_version"}
	}
	tx := buildPostedTransaction(r.TransactionVersion, r.Amount, r.Memo, r.SpendKey)
	return &wire.CreateMinersFeeResponse{SerializedTransaction: tx}, nil
}

// PostTransaction is the stand-in for posting a raw transaction with its
// spending key.
func PostTransaction(_ context.Context, req wire.Request) (wire.Response, error) {
	r := req.(*wire.PostTransactionRequest)
	if len(r.RawTransaction) == 0 {
		return nil, &HandlerError{Message: "proof build failed: empty raw transaction", Code: "proof_build_failed"}
	}
	sum := blake2b.Sum256(append(r.SpendingKey[:], r.RawTransaction...))
	out := append(append([]byte{txMagic}, r.RawTransaction...), sum[:]...)
	return &wire.PostTransactionResponse{SerializedTransaction: out}, nil
}

// MintOwner extracts the owner address embedded by BuildMintTransaction,
// for tests and for the verifier below. A transaction that isn't a
// recognizable mint (too short, bad magic, bad checksum) has no owner —
// VerifyTransactions treats that as passing the mint-owner check, never
// as an error.
func MintOwner(tx []byte) (owner string, ok bool) {
	if len(tx) < 1+4+32 || tx[0] != txMagic {
		return "", false
	}
	ownerLen := binary.LittleEndian.Uint32(tx[1:5])
	if uint64(len(tx)) < uint64(5)+uint64(ownerLen)+32 {
		return "", false
	}
	owner = string(tx[5 : 5+ownerLen])
	body := tx[:5+ownerLen]
	wantSum := tx[5+ownerLen : 5+ownerLen+32]
	gotSum := blake2b.Sum256(body)
	if !bytes.Equal(gotSum[:], wantSum) {
		return "", false
	}
	return owner, true
}

// BuildMintTransaction constructs a synthetic mint transaction tagged with
// owner, for tests exercising the mint-owner verification path.
func BuildMintTransaction(owner string) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(txMagic)
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(owner)))
	buf.Write(l[:])
	buf.WriteString(owner)
	sum := blake2b.Sum256(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes()
}

// VerifyTransactions checks that every mint transaction in the batch is
// owned by one of MintOwners. Verification fans out across an errgroup
// bounded by GOMAXPROCS rather than one goroutine per transaction — batch
// verification is CPU-bound and the handler itself already runs on a
// dedicated worker.
func VerifyTransactions(ctx context.Context, req wire.Request) (wire.Response, error) {
	r := req.(*wire.VerifyTransactionsRequest)

	allowed := make(map[string]bool, len(r.MintOwners))
	for _, o := range r.MintOwners {
		allowed[o] = true
	}

	results := make([]bool, len(r.Transactions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, tx := range r.Transactions {
		i, tx := i, tx
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			owner, ok := MintOwner(tx)
			if !ok {
				// Malformed/non-mint transaction: not this handler's
				// business to reject the batch over it.
				results[i] = true
				return nil
			}
			results[i] = allowed[owner]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Context canceled mid-verification: treat this as
		// verified=false, never as a handler error.
		return &wire.VerifyTransactionsResponse{Verified: false}, nil
	}

	verified := true
	for _, ok := range results {
		if !ok {
			verified = false
			break
		}
	}
	return &wire.VerifyTransactionsResponse{Verified: verified}, nil
}
