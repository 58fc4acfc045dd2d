package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ironforge/workerpool/internal/keytable"
	"github.com/ironforge/workerpool/internal/wire"
)

func TestDispatch_UnknownKind(t *testing.T) {
	r := New()
	_, err := r.Dispatch(context.Background(), wire.KindSleep, &wire.SleepRequest{})
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestRegister_DuplicatePanics(t *testing.T) {
	r := New()
	r.Register(wire.KindSleep, Sleep)
	require.Panics(t, func() { r.Register(wire.KindSleep, Sleep) })
}

func TestSleep_NoError_Resolves(t *testing.T) {
	resp, err := Sleep(context.Background(), &wire.SleepRequest{DurationMs: 0})
	require.NoError(t, err)
	require.Equal(t, &wire.SleepResponse{Aborted: false}, resp)
}

func TestSleep_WithError_Fails(t *testing.T) {
	_, err := Sleep(context.Background(), &wire.SleepRequest{DurationMs: 0, HasError: true, Error: "boom"})
	require.Error(t, err)
	require.Equal(t, "boom", err.Error())
}

func TestSleep_CtxCanceled_ReturnsAborted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp, err := Sleep(ctx, &wire.SleepRequest{DurationMs: 1 << 20})
	require.NoError(t, err)
	require.Equal(t, &wire.SleepResponse{Aborted: true}, resp)
}

func TestCreateMinersFee_Valid(t *testing.T) {
	fx := CreateMinersFeeRequestFixture()
	resp, err := CreateMinersFee(context.Background(), &fx.Request)
	require.NoError(t, err)
	cmf := resp.(*wire.CreateMinersFeeResponse)
	require.NotEmpty(t, cmf.SerializedTransaction)
}

func TestCreateMinersFee_InvalidMemo(t *testing.T) {
	fx := CreateMinersFeeRequestFixture()
	fx.Request.Memo = string(make([]byte, MaxMemoLength+1))
	_, err := CreateMinersFee(context.Background(), &fx.Request)
	require.Error(t, err)
}

func TestCreateMinersFee_InvalidVersion(t *testing.T) {
	fx := CreateMinersFeeRequestFixture()
	fx.Request.TransactionVersion = 99
	_, err := CreateMinersFee(context.Background(), &fx.Request)
	require.Error(t, err)
}

func TestPostTransaction_EmptyRaw_Fails(t *testing.T) {
	_, err := PostTransaction(context.Background(), &wire.PostTransactionRequest{})
	require.Error(t, err)
}

func TestPostTransaction_RoundTrips(t *testing.T) {
	req := &wire.PostTransactionRequest{RawTransaction: []byte{1, 2, 3}}
	resp, err := PostTransaction(context.Background(), req)
	require.NoError(t, err)
	pt := resp.(*wire.PostTransactionResponse)
	require.NotEmpty(t, pt.SerializedTransaction)
}

func TestVerifyTransactions_CorrectOwner(t *testing.T) {
	tx := BuildMintTransaction("owner-a")
	req := &wire.VerifyTransactionsRequest{
		Transactions: [][]byte{tx},
		MintOwners:   []string{"owner-a"},
	}
	resp, err := VerifyTransactions(context.Background(), req)
	require.NoError(t, err)
	require.True(t, resp.(*wire.VerifyTransactionsResponse).Verified)
}

func TestVerifyTransactions_WrongOwner(t *testing.T) {
	tx := BuildMintTransaction("owner-a")
	req := &wire.VerifyTransactionsRequest{
		Transactions: [][]byte{tx},
		MintOwners:   []string{"owner-b"},
	}
	resp, err := VerifyTransactions(context.Background(), req)
	require.NoError(t, err)
	require.False(t, resp.(*wire.VerifyTransactionsResponse).Verified)
}

func TestDecryptNotes_SingleAccountSingleNote(t *testing.T) {
	var ak wire.AccountKeys
	copy(ak.IncomingViewKey[:], []byte("incoming-key-for-account-number1"))
	copy(ak.ViewKey[:], []byte("full-view-key-for-account-numbr1"))

	note := BuildSyntheticNote(ak.IncomingViewKey, 500, "")
	req := &wire.DecryptNotesRequest{
		AccountKeys: []wire.AccountKeys{ak},
		Notes:       []wire.NoteInput{{SerializedNote: note}},
	}

	d := NewDecryptor(keytable.NewRegistry())
	resp, err := d.Handle(context.Background(), req)
	require.NoError(t, err)

	dn := resp.(*wire.DecryptNotesResponse)
	require.Len(t, dn.Entries, 1)
	entry, ok := dn.Entries[0]
	require.True(t, ok)
	require.Greater(t, entry.Value, uint64(0))
	require.NotEmpty(t, entry.Nullifier)
}

func TestDecryptNotes_SecondUnrelatedAccount_Absent(t *testing.T) {
	var owner, other wire.AccountKeys
	copy(owner.IncomingViewKey[:], []byte("incoming-key-for-account-number1"))
	copy(other.IncomingViewKey[:], []byte("incoming-key-for-account-number2"))

	note := BuildSyntheticNote(owner.IncomingViewKey, 500, "")
	req := &wire.DecryptNotesRequest{
		AccountKeys: []wire.AccountKeys{owner, other},
		Notes:       []wire.NoteInput{{SerializedNote: note}},
	}

	d := NewDecryptor(keytable.NewRegistry())
	resp, err := d.Handle(context.Background(), req)
	require.NoError(t, err)

	dn := resp.(*wire.DecryptNotesResponse)
	require.EqualValues(t, 2, dn.Length) // 1 note * 2 accounts
	require.Len(t, dn.Entries, 1)
	_, present := dn.Entries[0]
	require.True(t, present)
	_, present = dn.Entries[1]
	require.False(t, present)
}

func TestDecryptNotes_SharedKeyTable(t *testing.T) {
	var ak wire.AccountKeys
	copy(ak.IncomingViewKey[:], []byte("incoming-key-for-account-number1"))

	reg := keytable.NewRegistry()
	table := keytable.Build([]keytable.AccountKeys{{
		IncomingViewKey: ak.IncomingViewKey,
		OutgoingViewKey: ak.OutgoingViewKey,
		ViewKey:         ak.ViewKey,
	}})
	id := reg.Put(table)

	note := BuildSyntheticNote(ak.IncomingViewKey, 42, "")
	req := &wire.DecryptNotesRequest{
		HasSharedKeys:    true,
		SharedKeyTableID: id,
		Notes:            []wire.NoteInput{{SerializedNote: note}},
	}

	d := NewDecryptor(reg)
	resp, err := d.Handle(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.(*wire.DecryptNotesResponse).Entries, 1)
}

func TestDecryptNotes_UnknownSharedTable_Errors(t *testing.T) {
	d := NewDecryptor(keytable.NewRegistry())
	req := &wire.DecryptNotesRequest{HasSharedKeys: true, SharedKeyTableID: 999}
	_, err := d.Handle(context.Background(), req)
	require.Error(t, err)
}

// --- fixtures ---

type createMinersFeeFixture struct {
	Request wire.CreateMinersFeeRequest
}

func CreateMinersFeeRequestFixture() createMinersFeeFixture {
	fx := createMinersFeeFixture{Request: wire.CreateMinersFeeRequest{
		Amount:             100,
		Memo:               "block reward",
		TransactionVersion: 1,
	}}
	copy(fx.Request.SpendKey[:], []byte("spend-key-material-32-bytes-long"))
	return fx
}
