package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	stableips "github.com/graphtrek/stableips-sub001"
)

// Store persists ledger entries and their indexes. Reads hit the database
// directly; writes serialize on a store-level mutex so id allocation and
// index maintenance stay consistent.
type Store struct {
	db *leveldb.DB
	mu sync.Mutex
}

// NewStore wraps an open database.
func NewStore(db *leveldb.DB) *Store {
	return &Store{db: db}
}

// Append validates and stores a new entry, assigning its id and, when the
// caller left it zero, its timestamp. The stored entry is returned.
func (s *Store) Append(e *Entry) (*Entry, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.TxHash != "" {
		exists, err := s.db.Has(hashKey(e.TxHash), nil)
		if err != nil {
			return nil, fmt.Errorf("ledger: hash lookup: %w", err)
		}
		if exists {
			return nil, fmt.Errorf("ledger: duplicate transaction hash %s", e.TxHash)
		}
	}

	id, err := s.nextIDLocked()
	if err != nil {
		return nil, err
	}

	stored := *e
	stored.ID = id
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC()
	}

	raw, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("ledger: encode entry: %w", err)
	}

	idBytes := encodeID(id)
	batch := new(leveldb.Batch)
	batch.Put(entryKey(id), raw)
	batch.Put(statusKey(stored.Status, id), idBytes)
	batch.Put(userKey(stored.UserID, stored.Timestamp, id), idBytes)
	batch.Put(userTypeKey(stored.UserID, stored.Type, stored.Timestamp, id), idBytes)
	if stored.Recipient != "" {
		batch.Put(recipientKey(stored.Recipient, stored.Timestamp, id), idBytes)
	}
	if stored.TxHash != "" {
		batch.Put(hashKey(stored.TxHash), idBytes)
	}
	batch.Put(nextIDKey, encodeID(id+1))

	if err := s.db.Write(batch, nil); err != nil {
		return nil, fmt.Errorf("ledger: write entry: %w", err)
	}
	return &stored, nil
}

// UpdateStatus transitions a PENDING entry to a new status. Re-applying the
// status an entry already holds is a no-op; any other transition away from a
// terminal status is rejected. No field other than status is touched.
func (s *Store) UpdateStatus(id uint64, status stableips.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(id)
	if err != nil {
		return err
	}
	if e.Status == status {
		return nil
	}
	if e.Status != stableips.StatusPending {
		return fmt.Errorf("ledger: entry %d is %s, cannot transition to %s", id, e.Status, status)
	}

	prev := e.Status
	e.Status = status
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("ledger: encode entry: %w", err)
	}

	batch := new(leveldb.Batch)
	batch.Put(entryKey(id), raw)
	batch.Delete(statusKey(prev, id))
	batch.Put(statusKey(status, id), encodeID(id))
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("ledger: write status: %w", err)
	}
	return nil
}

// ByID looks up a single entry.
func (s *Store) ByID(id uint64) (*Entry, error) {
	return s.get(id)
}

// BySender lists a user's entries, newest first.
func (s *Store) BySender(userID uint64) ([]*Entry, error) {
	return s.iterate(userIterPrefix(userID))
}

// ByRecipient lists entries addressed to a chain address, newest first.
func (s *Store) ByRecipient(addr string) ([]*Entry, error) {
	if addr == "" {
		return nil, nil
	}
	return s.iterate(recipientIterPrefix(addr))
}

// ByStatus lists entries currently in a status, oldest first.
func (s *Store) ByStatus(status stableips.Status) ([]*Entry, error) {
	return s.iterate(statusIterPrefix(status))
}

// ByUserAndTypes lists a user's entries restricted to the given types,
// newest first across all of them.
func (s *Store) ByUserAndTypes(userID uint64, types ...stableips.EntryType) ([]*Entry, error) {
	var entries []*Entry
	for _, typ := range types {
		part, err := s.iterate(userTypeIterPrefix(userID, typ))
		if err != nil {
			return nil, err
		}
		entries = append(entries, part...)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}

// ByHash looks up the entry recorded for a transaction hash.
func (s *Store) ByHash(txHash string) (*Entry, error) {
	raw, err := s.db.Get(hashKey(txHash), nil)
	if err == leveldb.ErrNotFound {
		return nil, stableips.NewNotFoundError("ledger entry", txHash)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: hash lookup: %w", err)
	}
	return s.get(decodeID(raw))
}

func (s *Store) get(id uint64) (*Entry, error) {
	raw, err := s.db.Get(entryKey(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, stableips.NewNotFoundError("ledger entry", strconv.FormatUint(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: read entry %d: %w", id, err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("ledger: decode entry %d: %w", id, err)
	}
	return &e, nil
}

func (s *Store) iterate(prefix []byte) ([]*Entry, error) {
	it := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	var entries []*Entry
	for it.Next() {
		e, err := s.get(decodeID(it.Value()))
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("ledger: iterate: %w", err)
	}
	return entries, nil
}

func (s *Store) nextIDLocked() (uint64, error) {
	raw, err := s.db.Get(nextIDKey, nil)
	if err == leveldb.ErrNotFound {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ledger: read id counter: %w", err)
	}
	return decodeID(raw), nil
}
