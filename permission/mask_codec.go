package permission

import (
	"encoding/binary"
	"errors"
)

// EncodeMask serializes a mask to its 8-byte big-endian wire form. The
// encoded mask rides inside access-token claims and session blobs.
func EncodeMask(mask Mask64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(mask))
	return b
}

// DecodeMask reverses [EncodeMask]. A nil or empty slice decodes to the
// zero mask so callers can treat "no mask recorded" as "no permissions".
func DecodeMask(data []byte) (Mask64, error) {
	if len(data) == 0 {
		return 0, nil
	}
	if len(data) != 8 {
		return 0, errors.New("invalid mask size")
	}
	return Mask64(binary.BigEndian.Uint64(data)), nil
}
