package ledger

import (
	"encoding/binary"
	"time"

	stableips "github.com/graphtrek/stableips-sub001"
)

// LevelDB key layout. Every index value is the big-endian entry id, so
// iteration code is uniform regardless of which index it walks. Timestamps
// inside keys are bit-complemented: ascending key order is then descending
// time order, which is the order every listing wants.
var (
	entryPrefix     = []byte("l/e/")      // entryPrefix + id -> entry JSON
	nextIDKey       = []byte("l/meta/nextid")
	statusPrefix    = []byte("l/i/status/") // + status + id -> id
	userPrefix      = []byte("l/i/user/")   // + userID + ^ts + ^id -> id
	recipientPrefix = []byte("l/i/rcpt/")   // + addr + 0x00 + ^ts + ^id -> id
	userTypePrefix  = []byte("l/i/utype/")  // + userID + type + 0x00 + ^ts + ^id -> id
	hashPrefix      = []byte("l/i/hash/")   // + txHash -> id
)

func encodeID(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

func decodeID(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// encodeDescTime encodes a millisecond timestamp complemented so newer
// entries sort first.
func encodeDescTime(t time.Time) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], ^uint64(t.UnixMilli()))
	return b[:]
}

// encodeDescID uniquifies time-ordered index keys. Complemented like the
// timestamp, so entries sharing a millisecond still list newest first.
func encodeDescID(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], ^id)
	return b[:]
}

func entryKey(id uint64) []byte {
	return append(append([]byte{}, entryPrefix...), encodeID(id)...)
}

func statusKey(status stableips.Status, id uint64) []byte {
	key := append([]byte{}, statusPrefix...)
	key = append(key, status...)
	return append(key, encodeID(id)...)
}

func statusIterPrefix(status stableips.Status) []byte {
	return append(append([]byte{}, statusPrefix...), status...)
}

func userKey(userID uint64, ts time.Time, id uint64) []byte {
	key := append([]byte{}, userPrefix...)
	key = append(key, encodeID(userID)...)
	key = append(key, encodeDescTime(ts)...)
	return append(key, encodeDescID(id)...)
}

func userIterPrefix(userID uint64) []byte {
	return append(append([]byte{}, userPrefix...), encodeID(userID)...)
}

func recipientKey(addr string, ts time.Time, id uint64) []byte {
	key := append([]byte{}, recipientPrefix...)
	key = append(key, addr...)
	key = append(key, 0x00)
	key = append(key, encodeDescTime(ts)...)
	return append(key, encodeDescID(id)...)
}

func recipientIterPrefix(addr string) []byte {
	key := append([]byte{}, recipientPrefix...)
	key = append(key, addr...)
	return append(key, 0x00)
}

func userTypeKey(userID uint64, typ stableips.EntryType, ts time.Time, id uint64) []byte {
	key := append([]byte{}, userTypePrefix...)
	key = append(key, encodeID(userID)...)
	key = append(key, typ...)
	key = append(key, 0x00)
	key = append(key, encodeDescTime(ts)...)
	return append(key, encodeDescID(id)...)
}

func userTypeIterPrefix(userID uint64, typ stableips.EntryType) []byte {
	key := append([]byte{}, userTypePrefix...)
	key = append(key, encodeID(userID)...)
	key = append(key, typ...)
	return append(key, 0x00)
}

func hashKey(txHash string) []byte {
	return append(append([]byte{}, hashPrefix...), txHash...)
}
