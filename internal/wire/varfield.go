package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Variable-length fields (varbytes/varstring) are a u32 little-endian
// length prefix followed by that many raw bytes. Used for anything whose
// size isn't fixed by the variant (memos, transaction blobs, graffiti).

// SizeVarBytes returns the encoded size of a varbytes field holding b.
func SizeVarBytes(b []byte) int { return 4 + len(b) }

// PutVarBytes writes b as a varbytes field into buf (which must be at
// least SizeVarBytes(b) long) and returns the number of bytes written.
func PutVarBytes(buf []byte, b []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(b)))
	copy(buf[4:], b)
	return 4 + len(b)
}

// GetVarBytes reads a varbytes field from the front of buf, returning the
// decoded slice and the number of bytes consumed.
func GetVarBytes(buf []byte) ([]byte, int, error) {
	if len(buf) < 4 {
		return nil, 0, errors.Wrap(ErrMalformedFrame, "varbytes: short length prefix")
	}
	n := binary.LittleEndian.Uint32(buf[0:4])
	if uint64(len(buf)-4) < uint64(n) {
		return nil, 0, errors.Wrap(ErrMalformedFrame, "varbytes: truncated payload")
	}
	out := make([]byte, n)
	copy(out, buf[4:4+n])
	return out, int(4 + n), nil
}

// SizeVarString and friends are varbytes with a string in/out.
func SizeVarString(s string) int { return 4 + len(s) }

func PutVarString(buf []byte, s string) int { return PutVarBytes(buf, []byte(s)) }

func GetVarString(buf []byte) (string, int, error) {
	b, n, err := GetVarBytes(buf)
	if err != nil {
		return "", 0, err
	}
	return string(b), n, nil
}
