/*
Package memorydb is the in-process state store, values are kept JSON encoded
so that reading returns a copy just like the file backed store does.
*/
package memorydb

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/alphabill-org/ptsim/keyvaluedb"
)

var ErrStorageFull = errors.New("storage full")

type (
	MemoryDB struct {
		mu      sync.RWMutex
		entries map[string][]byte
		limit   int
	}

	Option func(*MemoryDB)
)

/*
WithEntryLimit caps the number of keys the db accepts, writing new key into
full db fails with ErrStorageFull. Used to simulate failing storage.
*/
func WithEntryLimit(n int) Option {
	return func(db *MemoryDB) { db.limit = n }
}

func New(opts ...Option) *MemoryDB {
	db := &MemoryDB{entries: make(map[string][]byte)}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

func (db *MemoryDB) Read(key []byte, value any) (bool, error) {
	if err := keyvaluedb.CheckKeyAndValue(key, value); err != nil {
		return false, err
	}
	db.mu.RLock()
	data, ok := db.entries[string(key)]
	db.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, value); err != nil {
		return true, fmt.Errorf("decoding %q: %w", key, err)
	}
	return true, nil
}

func (db *MemoryDB) Write(key []byte, value any) error {
	if err := keyvaluedb.CheckKeyAndValue(key, value); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.entries[string(key)]; !ok && db.limit > 0 && len(db.entries) >= db.limit {
		return fmt.Errorf("writing %q: %w", key, ErrStorageFull)
	}
	db.entries[string(key)] = data
	return nil
}

func (db *MemoryDB) Close() error { return nil }
