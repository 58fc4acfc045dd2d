package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubmit_Uploads(t *testing.T) {
	var got Batch
	uploaded := 0
	c := NewClient(UploaderFunc(func(_ context.Context, b Batch) error {
		uploaded++
		got = b
		return nil
	}), 0, 0)

	batch := Batch{Points: []Point{{Name: "hashrate"}}, Graffiti: "node-a"}
	require.NoError(t, c.Submit(context.Background(), batch))
	require.Equal(t, 1, uploaded)
	require.Equal(t, batch, got)
	require.Zero(t, c.Dropped())
}

func TestSubmit_RateLimited_DropsWithoutError(t *testing.T) {
	uploaded := 0
	c := NewClient(UploaderFunc(func(_ context.Context, b Batch) error {
		uploaded++
		return nil
	}), 1, 1) // burst of 1: first call passes, rest shed until refill

	batch := Batch{Points: []Point{{Name: "p1"}, {Name: "p2"}}}
	require.NoError(t, c.Submit(context.Background(), batch))
	require.NoError(t, c.Submit(context.Background(), batch))
	require.Equal(t, 1, uploaded)
	require.Equal(t, uint64(2), c.Dropped())
}
