/*
Package boltdb implements the state store on top of single bbolt file, values
are stored CBOR encoded.
*/
package boltdb

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/alphabill-org/ptsim/keyvaluedb"
)

// all the simulator state lives in this bucket
var stateBucket = []byte("ptsim")

// BoltDB is the state database of the simulator.
type BoltDB struct {
	db  *bolt.DB
	enc cbor.EncMode
}

/*
New opens (creating when needed) the database file "dbFile". Opening fails
after a timeout when another simulator holds the file.
*/
func New(dbFile string) (*BoltDB, error) {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("creating CBOR encoder: %w", err)
	}
	db, err := bolt.Open(dbFile, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db %q: %w", dbFile, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	}); err != nil {
		return nil, errors.Join(fmt.Errorf("creating state bucket: %w", err), db.Close())
	}
	return &BoltDB{db: db, enc: enc}, nil
}

func (s *BoltDB) Read(key []byte, v any) (found bool, _ error) {
	if err := keyvaluedb.CheckKeyAndValue(key, v); err != nil {
		return false, err
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		// the slice is valid only while the transaction is open so decode here
		data := tx.Bucket(stateBucket).Get(key)
		if found = data != nil; !found {
			return nil
		}
		return cbor.Unmarshal(data, v)
	})
	if err != nil {
		return found, fmt.Errorf("reading %q: %w", key, err)
	}
	return found, nil
}

func (s *BoltDB) Write(key []byte, v any) error {
	if err := keyvaluedb.CheckKeyAndValue(key, v); err != nil {
		return err
	}
	data, err := s.enc.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Put(key, data)
	}); err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

func (s *BoltDB) Close() error {
	return s.db.Close()
}
