package registry

import (
	"context"

	"github.com/ironforge/workerpool/internal/telemetry"
	"github.com/ironforge/workerpool/internal/wire"
)

// TelemetrySubmitter is the stateful half of the SubmitTelemetry stand-in,
// parallel to Decryptor: it closes over the rate-limited telemetry.Client
// that actually ships batches to ApiHost.
type TelemetrySubmitter struct {
	client *telemetry.Client
}

func NewTelemetrySubmitter(client *telemetry.Client) *TelemetrySubmitter {
	return &TelemetrySubmitter{client: client}
}

// Handle implements registry.Handler for KindSubmitTelemetry.
func (t *TelemetrySubmitter) Handle(ctx context.Context, req wire.Request) (wire.Response, error) {
	r := req.(*wire.SubmitTelemetryRequest)

	points := make([]telemetry.Point, len(r.Points))
	for i, p := range r.Points {
		points[i] = telemetry.Point{Name: p.Name, TimestampMs: p.TimestampMs, Fields: p.Fields}
	}

	err := t.client.Submit(ctx, telemetry.Batch{
		Points:   points,
		Graffiti: r.Graffiti,
		ApiHost:  r.ApiHost,
	})
	if err != nil {
		return nil, &HandlerError{Message: err.Error(), Code: "upload_failed"}
	}
	return &wire.SubmitTelemetryResponse{}, nil
}
