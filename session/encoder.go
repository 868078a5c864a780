package session

import (
	"encoding/binary"
	"errors"

	"github.com/Afolstee/authcore/permission"
)

// Blob layout (offsets are zero-based):
//
//	[0]      format version
//	[1]      status
//	[2:34]   refresh hash (32 bytes)
//	[34:42]  createdAt, big-endian int64
//	[42:50]  expiresAt, big-endian int64
//	[50]     userID length
//	[...]    userID
//	[.]      role length
//	[...]    role
//	[.]      mask length
//	[...]    mask (8 bytes)
//
// The fixed-offset header lets the rotation script read expiry and swap the
// refresh hash without parsing the variable tail. Changing any header offset
// requires updating the Lua script in store.go.
const (
	formatVersion = 1

	offStatus      = 1
	offRefreshHash = 2
	offCreatedAt   = 34
	offExpiresAt   = 42
	offUserLen     = 50

	headerSize = 51
)

// ErrInvalidBlob is returned when a stored session blob cannot be decoded.
var ErrInvalidBlob = errors.New("invalid session blob")

// Encode serializes a [Session] to its Redis blob form.
func Encode(s *Session) ([]byte, error) {
	if len(s.UserID) > 255 {
		return nil, errors.New("userID too long")
	}
	if len(s.Role) > 255 {
		return nil, errors.New("role too long")
	}

	mask := permission.EncodeMask(s.Mask)

	buf := make([]byte, 0, headerSize+len(s.UserID)+len(s.Role)+2+len(mask))

	buf = append(buf, formatVersion, s.Status)
	buf = append(buf, s.RefreshHash[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(s.CreatedAt))
	buf = binary.BigEndian.AppendUint64(buf, uint64(s.ExpiresAt))

	buf = append(buf, byte(len(s.UserID)))
	buf = append(buf, s.UserID...)
	buf = append(buf, byte(len(s.Role)))
	buf = append(buf, s.Role...)
	buf = append(buf, byte(len(mask)))
	buf = append(buf, mask...)

	return buf, nil
}

// Decode reverses [Encode]. SessionID is not part of the blob; callers set
// it from the Redis key they fetched.
func Decode(data []byte) (*Session, error) {
	if len(data) < headerSize {
		return nil, ErrInvalidBlob
	}
	if data[0] != formatVersion {
		return nil, ErrInvalidBlob
	}

	s := &Session{
		Status:    data[offStatus],
		CreatedAt: int64(binary.BigEndian.Uint64(data[offCreatedAt:offExpiresAt])),
		ExpiresAt: int64(binary.BigEndian.Uint64(data[offExpiresAt:offUserLen])),
	}
	copy(s.RefreshHash[:], data[offRefreshHash:offCreatedAt])

	idx := offUserLen
	userLen := int(data[idx])
	idx++
	if len(data) < idx+userLen+1 {
		return nil, ErrInvalidBlob
	}
	s.UserID = string(data[idx : idx+userLen])
	idx += userLen

	roleLen := int(data[idx])
	idx++
	if len(data) < idx+roleLen+1 {
		return nil, ErrInvalidBlob
	}
	s.Role = string(data[idx : idx+roleLen])
	idx += roleLen

	maskLen := int(data[idx])
	idx++
	if len(data) < idx+maskLen {
		return nil, ErrInvalidBlob
	}
	mask, err := permission.DecodeMask(data[idx : idx+maskLen])
	if err != nil {
		return nil, ErrInvalidBlob
	}
	s.Mask = mask

	return s, nil
}
