package authcore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resetKeyPrefix       = "apr"
	resetRecordVersionV1 = 1
)

var (
	errResetNotFound         = errors.New("reset record not found")
	errResetRecordCorrupt    = errors.New("reset record corrupt")
	errResetRedisUnavailable = errors.New("reset redis unavailable")
)

type passwordResetRecord struct {
	UserID     string
	SecretHash [32]byte
	ExpiresAt  int64
}

// passwordResetStore persists single-use reset records. Consume is
// GETDEL-based: a record leaves Redis the moment it is read, so a token
// can never be redeemed twice regardless of the comparison outcome.
type passwordResetStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newPasswordResetStore(redisClient redis.UniversalClient) *passwordResetStore {
	return &passwordResetStore{
		redis:  redisClient,
		prefix: resetKeyPrefix,
	}
}

func (s *passwordResetStore) key(resetID string) string {
	return s.prefix + ":" + resetID
}

func (s *passwordResetStore) Save(ctx context.Context, resetID string, record *passwordResetRecord, ttl time.Duration) error {
	encoded, err := encodePasswordResetRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(resetID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errResetRedisUnavailable, err)
	}

	return nil
}

// Consume atomically removes and returns the record for resetID.
func (s *passwordResetStore) Consume(ctx context.Context, resetID string) (*passwordResetRecord, error) {
	data, err := s.redis.GetDel(ctx, s.key(resetID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errResetNotFound
		}
		return nil, fmt.Errorf("%w: %v", errResetRedisUnavailable, err)
	}

	record, err := decodePasswordResetRecord(data)
	if err != nil {
		return nil, err
	}

	if time.Now().Unix() > record.ExpiresAt {
		return nil, errResetNotFound
	}

	return record, nil
}

func encodePasswordResetRecord(record *passwordResetRecord) ([]byte, error) {
	if len(record.UserID) > 255 {
		return nil, errors.New("userID too long")
	}

	buf := make([]byte, 0, 2+len(record.UserID)+32+8)
	buf = append(buf, resetRecordVersionV1)
	buf = append(buf, byte(len(record.UserID)))
	buf = append(buf, record.UserID...)
	buf = append(buf, record.SecretHash[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(record.ExpiresAt))

	return buf, nil
}

func decodePasswordResetRecord(data []byte) (*passwordResetRecord, error) {
	if len(data) < 2 || data[0] != resetRecordVersionV1 {
		return nil, errResetRecordCorrupt
	}

	userLen := int(data[1])
	if len(data) != 2+userLen+32+8 {
		return nil, errResetRecordCorrupt
	}

	record := &passwordResetRecord{
		UserID: string(data[2 : 2+userLen]),
	}
	copy(record.SecretHash[:], data[2+userLen:2+userLen+32])
	record.ExpiresAt = int64(binary.BigEndian.Uint64(data[2+userLen+32:]))

	return record, nil
}
