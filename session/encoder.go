package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const sessionFormatVersion1 = 1

// ErrCorruptRecord is returned when a stored session blob cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt session record")

// Encode serializes a session into the versioned binary record stored in
// Redis. Strings are length-prefixed with a single byte.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersion1)

	for _, field := range []string{s.ID, s.IdentityID, s.DisplayName, s.Role} {
		if len(field) > 255 {
			return nil, errors.New("session field too long")
		}
		buf.WriteByte(byte(len(field)))
		buf.WriteString(field)
	}

	for _, ts := range []int64{s.CreatedAt, s.LastActivity, s.ExpiresAt} {
		if err := binary.Write(&buf, binary.BigEndian, ts); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a record produced by Encode.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}
	if version != sessionFormatVersion1 {
		return nil, ErrCorruptRecord
	}

	s := &Session{}
	for _, field := range []*string{&s.ID, &s.IdentityID, &s.DisplayName, &s.Role} {
		length, err := reader.ReadByte()
		if err != nil {
			return nil, ErrCorruptRecord
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, ErrCorruptRecord
		}
		*field = string(raw)
	}

	for _, ts := range []*int64{&s.CreatedAt, &s.LastActivity, &s.ExpiresAt} {
		if err := binary.Read(reader, binary.BigEndian, ts); err != nil {
			return nil, ErrCorruptRecord
		}
	}

	return s, nil
}
