// Package storage opens the LevelDB database backing the ledger and
// user registry. Both stores share a single database and partition the
// keyspace by prefix.
package storage

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// Open opens (or creates) the database at path.
func Open(path string) (*leveldb.DB, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		OpenFilesCacheCapacity: 64,
		BlockCacheCapacity:     8 * opt.MiB,
		WriteBuffer:            4 * opt.MiB,
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// OpenInMemory opens a database backed by memory only. Used in tests.
func OpenInMemory() (*leveldb.DB, error) {
	return leveldb.Open(storage.NewMemStorage(), nil)
}
