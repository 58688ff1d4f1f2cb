package registry

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"

	stableips "github.com/graphtrek/stableips-sub001"
)

// Keygen produces fresh credentials for one chain. Every chain adapter
// satisfies it.
type Keygen interface {
	GenerateKeypair() (stableips.Keypair, error)
}

// LevelDB key layout, disjoint from the ledger's "l/" space.
var (
	userEntryPrefix = []byte("u/e/")      // + id -> user JSON
	userNextIDKey   = []byte("u/meta/nextid")
	usernamePrefix  = []byte("u/i/name/") // + username -> id
	addressPrefix   = []byte("u/i/addr/") // + address -> id, one per chain
)

// Store persists users. Writes serialize on a store-level mutex; the XRP
// replacement path in particular is a read-modify-write.
type Store struct {
	db  *leveldb.DB
	mu  sync.Mutex
	evm Keygen
	xrp Keygen
	sol Keygen
}

// NewStore wraps an open database with the three per-chain generators.
func NewStore(db *leveldb.DB, evm, xrp, sol Keygen) *Store {
	return &Store{db: db, evm: evm, xrp: xrp, sol: sol}
}

// Create mints all three credential triples for a new username and persists
// the user. Usernames are unique; creating one that exists is an error, the
// caller resolves repeat logins through ByUsername first.
func (s *Store) Create(username string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("registry: username must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	taken, err := s.db.Has(usernameKey(username), nil)
	if err != nil {
		return nil, fmt.Errorf("registry: username lookup: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("registry: username %q already exists", username)
	}

	evm, err := s.evm.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("registry: generate EVM keypair: %w", err)
	}
	xrp, err := s.xrp.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("registry: generate XRP keypair: %w", err)
	}
	sol, err := s.sol.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("registry: generate Solana keypair: %w", err)
	}

	id, err := s.nextIDLocked()
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:                 id,
		Username:           username,
		EvmAddress:         evm.Address,
		EvmPrivateKeyHex:   evm.Secret,
		XrpAddress:         xrp.Address,
		XrpSeedHex:         xrp.Secret,
		SolanaPublicKey:    sol.Address,
		SolanaSecretKeyB64: sol.Secret,
		CreatedAt:          time.Now().UTC(),
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("registry: encode user: %w", err)
	}

	idBytes := encodeUserID(id)
	batch := new(leveldb.Batch)
	batch.Put(userEntryKey(id), raw)
	batch.Put(usernameKey(username), idBytes)
	for _, addr := range user.Addresses() {
		batch.Put(addressKey(addr), idBytes)
	}
	batch.Put(userNextIDKey, encodeUserID(id+1))

	if err := s.db.Write(batch, nil); err != nil {
		return nil, fmt.Errorf("registry: write user: %w", err)
	}
	return user, nil
}

// ReplaceXrpCredentials mints a fresh XRP triple for the user and persists
// it, retiring the old address. Funding the new address is the caller's
// responsibility.
func (s *Store) ReplaceXrpCredentials(userID uint64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.get(userID)
	if err != nil {
		return nil, err
	}

	xrp, err := s.xrp.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("registry: generate XRP keypair: %w", err)
	}

	oldAddr := user.XrpAddress
	user.XrpAddress = xrp.Address
	user.XrpSeedHex = xrp.Secret

	raw, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("registry: encode user: %w", err)
	}

	batch := new(leveldb.Batch)
	batch.Put(userEntryKey(userID), raw)
	if oldAddr != "" {
		batch.Delete(addressKey(oldAddr))
	}
	batch.Put(addressKey(xrp.Address), encodeUserID(userID))

	if err := s.db.Write(batch, nil); err != nil {
		return nil, fmt.Errorf("registry: write user: %w", err)
	}
	return user, nil
}

// ByID looks up a user by id.
func (s *Store) ByID(id uint64) (*User, error) {
	return s.get(id)
}

// ByUsername looks up a user by exact username.
func (s *Store) ByUsername(username string) (*User, error) {
	return s.lookup(usernameKey(strings.TrimSpace(username)), username)
}

// ByEvmAddress looks up a user by EVM address, ignoring hex casing.
func (s *Store) ByEvmAddress(addr string) (*User, error) {
	return s.lookup(addressKey(addr), addr)
}

// ByAddress resolves an address on any of the three chains to its user.
func (s *Store) ByAddress(addr string) (*User, error) {
	return s.lookup(addressKey(addr), addr)
}

func (s *Store) lookup(key []byte, display string) (*User, error) {
	raw, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, stableips.NewNotFoundError("user", display)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: lookup: %w", err)
	}
	return s.get(binary.BigEndian.Uint64(raw))
}

func (s *Store) get(id uint64) (*User, error) {
	raw, err := s.db.Get(userEntryKey(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, stableips.NewNotFoundError("user", strconv.FormatUint(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("registry: read user %d: %w", id, err)
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("registry: decode user %d: %w", id, err)
	}
	return &u, nil
}

func (s *Store) nextIDLocked() (uint64, error) {
	raw, err := s.db.Get(userNextIDKey, nil)
	if err == leveldb.ErrNotFound {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("registry: read id counter: %w", err)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func encodeUserID(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

func userEntryKey(id uint64) []byte {
	return append(append([]byte{}, userEntryPrefix...), encodeUserID(id)...)
}

func usernameKey(username string) []byte {
	return append(append([]byte{}, usernamePrefix...), username...)
}

// addressKey normalizes EVM hex addresses to lower case so checksum casing
// does not split lookups; base58 addresses are case sensitive and kept as is.
func addressKey(addr string) []byte {
	if strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X") {
		addr = strings.ToLower(addr)
	}
	return append(append([]byte{}, addressPrefix...), addr...)
}
