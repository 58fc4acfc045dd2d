package pool

import (
	"context"

	pkgerrors "github.com/pkg/errors"

	"github.com/ironforge/workerpool/internal/wire"
)

// typedExecute submits req, waits for its result, and type-asserts the
// response — the shared body of every convenience wrapper below: each
// validates the response kind against the request kind and surfaces the
// typed result.
func typedExecute[T wire.Response](ctx context.Context, p *WorkerPool, req wire.Request) (T, error) {
	var zero T
	j, err := p.Execute(req)
	if err != nil {
		return zero, err
	}
	resp, err := j.Result(ctx)
	if err != nil {
		return zero, err
	}
	out, ok := resp.(T)
	if !ok {
		return zero, pkgerrors.Errorf("pool: unexpected response type %T for kind %s", resp, req.Kind())
	}
	return out, nil
}

func (p *WorkerPool) CreateMinersFee(ctx context.Context, req *wire.CreateMinersFeeRequest) (*wire.CreateMinersFeeResponse, error) {
	return typedExecute[*wire.CreateMinersFeeResponse](ctx, p, req)
}

func (p *WorkerPool) PostTransaction(ctx context.Context, req *wire.PostTransactionRequest) (*wire.PostTransactionResponse, error) {
	return typedExecute[*wire.PostTransactionResponse](ctx, p, req)
}

func (p *WorkerPool) VerifyTransactions(ctx context.Context, req *wire.VerifyTransactionsRequest) (*wire.VerifyTransactionsResponse, error) {
	return typedExecute[*wire.VerifyTransactionsResponse](ctx, p, req)
}

func (p *WorkerPool) DecryptNotes(ctx context.Context, req *wire.DecryptNotesRequest) (*wire.DecryptNotesResponse, error) {
	return typedExecute[*wire.DecryptNotesResponse](ctx, p, req)
}

func (p *WorkerPool) Sleep(ctx context.Context, req *wire.SleepRequest) (*wire.SleepResponse, error) {
	return typedExecute[*wire.SleepResponse](ctx, p, req)
}

func (p *WorkerPool) SubmitTelemetry(ctx context.Context, req *wire.SubmitTelemetryRequest) (*wire.SubmitTelemetryResponse, error) {
	return typedExecute[*wire.SubmitTelemetryResponse](ctx, p, req)
}
