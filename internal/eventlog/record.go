// Package eventlog persists the asynchronous events the engine emits: one
// append-only partition per device identifier, with bounded tail reads and
// explicit whole-partition deletion.
//
// On-disk record layout (the value bytes under each sequence key):
//
//	[ 8-byte big-endian unix-millis | 4-byte big-endian kind | body bytes ]
//
// Keys within a partition are the 8-byte big-endian encoding of a
// store-assigned sequence number, so lexicographic key order equals append
// order.
package eventlog

import (
	"encoding/binary"
	"errors"
)

// headerLen is the fixed record header: timestamp plus kind tag.
const headerLen = 12

// ErrShortRecord is returned when a stored record is shorter than the
// fixed header. The store errors rather than guessing field boundaries.
var ErrShortRecord = errors.New("eventlog: record shorter than fixed header")

// Record is one engine event as stored: timestamp in milliseconds since
// epoch, a small integer kind tag, and the raw JSON body bytes.
type Record struct {
	Time int64
	Kind int32
	Body []byte
}

// Event is a Record read back from a partition, together with the
// partition key and the sequence number it was stored under.
type Event struct {
	Seq       uint64
	Partition string
	Record
}

// Encode lays the record out as header followed by the raw body bytes.
func (r Record) Encode() []byte {
	buf := make([]byte, headerLen+len(r.Body))
	binary.BigEndian.PutUint64(buf[0:8], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[8:12], uint32(r.Kind))
	copy(buf[headerLen:], r.Body)
	return buf
}

// DecodeRecord is the inverse of Encode. Round-trips exactly: timestamp,
// kind, and body bytes come back unchanged.
func DecodeRecord(b []byte) (Record, error) {
	if len(b) < headerLen {
		return Record{}, ErrShortRecord
	}
	body := make([]byte, len(b)-headerLen)
	copy(body, b[headerLen:])
	return Record{
		Time: int64(binary.BigEndian.Uint64(b[0:8])),
		Kind: int32(binary.BigEndian.Uint32(b[8:12])),
		Body: body,
	}, nil
}

// seqKey encodes a sequence number as its big-endian key form.
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// seqFromKey decodes a big-endian sequence key.
func seqFromKey(key []byte) (uint64, error) {
	if len(key) != 8 {
		return 0, errors.New("eventlog: sequence key must be 8 bytes")
	}
	return binary.BigEndian.Uint64(key), nil
}
