package authcore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const factorRecordVersion1 = 1

var (
	errFactorRecordNotFound = errors.New("factor record not found")
	errFactorRecordCorrupt  = errors.New("factor record corrupt")
	errFactorStoreBackend   = errors.New("factor store unavailable")
)

// factorRecord is the per-identity enrollment state machine position.
// Absence of a record means Unenrolled.
type factorRecord struct {
	FactorID  string
	Name      string
	State     FactorState
	CreatedAt int64
}

type factorStore struct {
	redis  *redis.Client
	prefix string
}

func newFactorStore(client *redis.Client, prefix string) *factorStore {
	if prefix == "" {
		prefix = "amf"
	}
	return &factorStore{redis: client, prefix: prefix}
}

func (s *factorStore) key(identityID string) string {
	return s.prefix + ":" + identityID
}

func (s *factorStore) Save(ctx context.Context, identityID string, record *factorRecord) error {
	encoded, err := encodeFactorRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(identityID), encoded, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", errFactorStoreBackend, err)
	}
	return nil
}

func (s *factorStore) Get(ctx context.Context, identityID string) (*factorRecord, error) {
	data, err := s.redis.Get(ctx, s.key(identityID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errFactorRecordNotFound
		}
		return nil, fmt.Errorf("%w: %v", errFactorStoreBackend, err)
	}
	return decodeFactorRecord(data)
}

func (s *factorStore) Delete(ctx context.Context, identityID string) error {
	if err := s.redis.Del(ctx, s.key(identityID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errFactorStoreBackend, err)
	}
	return nil
}

func encodeFactorRecord(record *factorRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(factorRecordVersion1)
	buf.WriteByte(byte(record.State))

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}

	for _, field := range []string{record.FactorID, record.Name} {
		if len(field) > 255 {
			return nil, errors.New("factor record field too long")
		}
		buf.WriteByte(byte(len(field)))
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodeFactorRecord(data []byte) (*factorRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != factorRecordVersion1 {
		return nil, errFactorRecordCorrupt
	}

	record := &factorRecord{}

	state, err := reader.ReadByte()
	if err != nil {
		return nil, errFactorRecordCorrupt
	}
	record.State = FactorState(state)

	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, errFactorRecordCorrupt
	}

	for _, field := range []*string{&record.FactorID, &record.Name} {
		length, err := reader.ReadByte()
		if err != nil {
			return nil, errFactorRecordCorrupt
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, errFactorRecordCorrupt
		}
		*field = string(raw)
	}

	return record, nil
}

func (r *factorRecord) toFactor() MFAFactor {
	if r == nil {
		return MFAFactor{State: FactorUnenrolled}
	}
	return MFAFactor{
		FactorID:  r.FactorID,
		Name:      r.Name,
		State:     r.State,
		CreatedAt: time.Unix(r.CreatedAt, 0).UTC(),
	}
}
