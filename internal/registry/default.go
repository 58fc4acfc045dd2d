package registry

import (
	"github.com/ironforge/workerpool/internal/keytable"
	"github.com/ironforge/workerpool/internal/telemetry"
	"github.com/ironforge/workerpool/internal/wire"
)

// NewDefault wires up the closed set of handlers this registry supports.
// sharedKeys and telemetryClient are the two handlers' pieces of external
// state; pass keytable.NewRegistry() and a telemetry.Client built around
// the real uploader in production, or test doubles in tests.
func NewDefault(sharedKeys *keytable.Registry, telemetryClient *telemetry.Client) *Registry {
	r := New()
	r.Register(wire.KindCreateMinersFee, CreateMinersFee)
	r.Register(wire.KindPostTransaction, PostTransaction)
	r.Register(wire.KindVerifyTransactions, VerifyTransactions)
	r.Register(wire.KindDecryptNotes, NewDecryptor(sharedKeys).Handle)
	r.Register(wire.KindSleep, Sleep)
	r.Register(wire.KindSubmitTelemetry, NewTelemetrySubmitter(telemetryClient).Handle)
	return r
}
