package badger

import (
	"bytes"
	"encoding/binary"
	"time"
)

// maxEventTime is the upper seek bound for reverse iteration.
var maxEventTime = time.Unix(0, 0).Add(1<<62 - 1)

// makeEventKey generates a composite key for one event.
// Format: prefix:timestamp:sequence
func makeEventKey(timestamp time.Time, sequence uint64) []byte {
	prefixBytes := []byte(eventPrefix)
	prefixSize := len(prefixBytes)
	buf := make([]byte, prefixSize+16)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], sequence)
	return buf
}

// makePartialEventKey generates a prefix key covering every event at or
// after timestamp. Format: prefix:timestamp
func makePartialEventKey(timestamp time.Time) []byte {
	prefixBytes := []byte(eventPrefix)
	prefixSize := len(prefixBytes)
	buf := make([]byte, prefixSize+8)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	return buf
}

func keyCompare(a, b []byte) int {
	return bytes.Compare(a, b)
}
