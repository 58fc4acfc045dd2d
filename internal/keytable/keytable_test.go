package keytable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func account(b byte) AccountKeys {
	var a AccountKeys
	for i := range a.IncomingViewKey {
		a.IncomingViewKey[i] = b
		a.OutgoingViewKey[i] = b + 1
		a.ViewKey[i] = b + 2
	}
	return a
}

func TestBuildAndAt(t *testing.T) {
	accounts := []AccountKeys{account(1), account(10), account(20)}
	table := Build(accounts)
	require.Equal(t, 3, table.Len())

	for i, want := range accounts {
		got, err := table.At(i)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestAt_OutOfRange(t *testing.T) {
	table := Build(nil)
	_, err := table.At(0)
	require.Error(t, err)
}

func TestRegistry_PutGetEvict(t *testing.T) {
	reg := NewRegistry()
	t1 := Build([]AccountKeys{account(1)})
	id1 := reg.Put(t1)

	got, ok := reg.Get(id1)
	require.True(t, ok)
	require.Same(t, t1, got)

	// Account-set change: scanner replaces, never mutates, the published
	// table. The old id stays resolvable until evicted.
	t2 := Build([]AccountKeys{account(1), account(2)})
	id2 := reg.Put(t2)
	require.NotEqual(t, id1, id2)

	stillOld, ok := reg.Get(id1)
	require.True(t, ok)
	require.Same(t, t1, stillOld)

	reg.Evict(id1)
	_, ok = reg.Get(id1)
	require.False(t, ok)

	current, ok := reg.Get(id2)
	require.True(t, ok)
	require.Same(t, t2, current)
}
