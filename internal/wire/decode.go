package wire

import "github.com/pkg/errors"

// DecodeRequest dispatches on kind to the matching request decoder. Unknown
// kinds return an error, never a panic.
func DecodeRequest(kind Kind, payload []byte) (Request, error) {
	switch kind {
	case KindCreateMinersFee:
		return DecodeCreateMinersFeeRequest(payload)
	case KindPostTransaction:
		return DecodePostTransactionRequest(payload)
	case KindVerifyTransactions:
		return DecodeVerifyTransactionsRequest(payload)
	case KindDecryptNotes:
		return DecodeDecryptNotesRequest(payload)
	case KindSleep:
		return DecodeSleepRequest(payload)
	case KindSubmitTelemetry:
		return DecodeSubmitTelemetryRequest(payload)
	case KindJobAborted:
		return DecodeJobAbortedPayload(payload)
	default:
		return nil, errors.Errorf("wire: unknown request kind %s", kind)
	}
}

// DecodeResponse dispatches on kind to the matching response decoder.
func DecodeResponse(kind Kind, payload []byte) (Response, error) {
	switch kind {
	case KindCreateMinersFee:
		return DecodeCreateMinersFeeResponse(payload)
	case KindPostTransaction:
		return DecodePostTransactionResponse(payload)
	case KindVerifyTransactions:
		return DecodeVerifyTransactionsResponse(payload)
	case KindDecryptNotes:
		return DecodeDecryptNotesResponse(payload)
	case KindSleep:
		return DecodeSleepResponse(payload)
	case KindSubmitTelemetry:
		return DecodeSubmitTelemetryResponse(payload)
	case KindJobError:
		return DecodeJobErrorPayload(payload)
	case KindJobAborted:
		return DecodeJobAbortedPayload(payload)
	default:
		return nil, errors.Errorf("wire: unknown response kind %s", kind)
	}
}
