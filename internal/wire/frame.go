package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// HeaderSize is the fixed prefix of every frame: 8 bytes job_id (LE) + 1
// byte kind.
const HeaderSize = 9

// ProtocolVersion is compiled into both sides of the wire and is never
// itself transmitted — both ends are built and deployed together.
// WorkerPool.Start refuses to start when Options.ExpectedProtocolVersion
// is non-zero and mismatched.
const ProtocolVersion uint32 = 1

// ErrMalformedFrame is returned by decoders when a frame's declared sizes
// don't match its actual bytes. It never crashes the channel; the caller
// turns it into a JobError.
var ErrMalformedFrame = errors.New("wire: malformed frame")

// Payload is implemented by every request/response variant.
type Payload interface {
	Kind() Kind
	// Size returns the exact encoded payload length, excluding the header.
	Size() int
	// Encode writes exactly Size() bytes to buf (caller-sized, no growth).
	Encode(buf []byte)
}

// Frame is a fully decoded message: the correlation id, its kind, and the
// variant-specific payload bytes (still undecoded — decoding is dispatched
// by kind in request.go/response.go).
type Frame struct {
	JobID   uint64
	Kind    Kind
	Payload []byte
}

// Marshal renders a Payload into a complete, ready-to-send frame.
func Marshal(jobID uint64, p Payload) []byte {
	buf := make([]byte, HeaderSize+p.Size())
	binary.LittleEndian.PutUint64(buf[0:8], jobID)
	buf[8] = byte(p.Kind())
	p.Encode(buf[HeaderSize:])
	return buf
}

// WriteFrame writes a complete frame to w.
func WriteFrame(w io.Writer, jobID uint64, p Payload) error {
	_, err := w.Write(Marshal(jobID, p))
	return err
}

// ReadFrame reads exactly one frame from r. It never reads past the frame:
// callers supply the payload length out of band (the in-process channel
// transport in this repo sends whole frames atomically; ReadFrame exists
// for the byte-stream-oriented tests and for any future socket transport).
func ReadFrame(r io.Reader, payloadSize int) (Frame, error) {
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return Frame{}, errors.Wrap(err, "wire: read header")
	}
	kind := Kind(hdr[8])
	if !kind.Valid() {
		return Frame{}, errors.Wrapf(ErrMalformedFrame, "unknown kind %d", hdr[8])
	}
	payload := make([]byte, payloadSize)
	if payloadSize > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, errors.Wrap(err, "wire: read payload")
		}
	}
	return Frame{
		JobID:   binary.LittleEndian.Uint64(hdr[0:8]),
		Kind:    kind,
		Payload: payload,
	}, nil
}

// DecodeHeader splits a full frame buffer into its header fields and raw
// payload slice without copying.
func DecodeHeader(buf []byte) (jobID uint64, kind Kind, payload []byte, err error) {
	if len(buf) < HeaderSize {
		return 0, 0, nil, errors.Wrap(ErrMalformedFrame, "short header")
	}
	jobID = binary.LittleEndian.Uint64(buf[0:8])
	kind = Kind(buf[8])
	if !kind.Valid() {
		return 0, 0, nil, errors.Wrapf(ErrMalformedFrame, "unknown kind %d", buf[8])
	}
	return jobID, kind, buf[HeaderSize:], nil
}
