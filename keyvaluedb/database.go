package keyvaluedb

// Reader interface for DB
type Reader interface {
	// Read reads the value for key stored in the DB, returns false when
	// the key is not found.
	Read(key []byte, value any) (bool, error)
}

// Writer interface for DB
type Writer interface {
	// Write inserts the given value into the DB, replacing the previous value.
	Write(key []byte, value any) error
}

// KeyValueDB is the key-value store used to persist machine state between runs.
type KeyValueDB interface {
	Reader
	Writer
	Close() error
}
