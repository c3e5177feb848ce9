// Package storage provides the column-family key-value backend the quad
// store runs on: snapshot reads, prefix scans, and serializable
// transactions over a declared set of column families.
package storage

import (
	"errors"
)

// ErrKeyNotFound reports a point lookup miss.
var ErrKeyNotFound = errors.New("key not found")

// ColumnFamily is an opaque handle to one named sub-table, resolved once at
// open time.
type ColumnFamily struct {
	name   string
	prefix byte
}

func (c ColumnFamily) Name() string {
	return c.name
}

// ColumnFamilyDefinition declares a column family at open time.
type ColumnFamilyDefinition struct {
	Name string

	// UseIter marks families that are prefix-scanned; families with only
	// point lookups may be laid out differently by the backend
	UseIter bool

	// MinPrefixSize is a key-prefix length hint, in bytes, for backends
	// that build prefix filters (0 for no hint). It does not restrict
	// scans; the Badger backend ignores it
	MinPrefixSize int

	// UnorderedWrites marks families whose writes need not preserve order
	// relative to each other (write-only side tables)
	UnorderedWrites bool
}

// DB is a column-family key-value store with snapshot reads and
// serializable transactions.
type DB interface {
	// ColumnFamily resolves a declared family by name
	ColumnFamily(name string) (ColumnFamily, bool)

	// Snapshot returns a read view of a single consistent point in time.
	// The caller must Close it to release backend resources.
	Snapshot() Reader

	// Transaction runs f against a writer view. If f returns nil the
	// writes are committed atomically; any error discards them and is
	// returned. f may be invoked more than once when the backend detects
	// a serialization conflict, so it must not have side effects outside
	// the transaction.
	Transaction(f func(Transaction) error) error

	Close() error
}

// Reader is a consistent read view over the column families.
type Reader interface {
	// Get returns the value stored under key, and whether it exists
	Get(cf ColumnFamily, key []byte) ([]byte, bool, error)

	// ContainsKey reports whether key exists
	ContainsKey(cf ColumnFamily, key []byte) (bool, error)

	// ScanPrefix iterates, in ascending key order, every row whose key
	// begins with prefix. An empty prefix scans the whole family.
	ScanPrefix(cf ColumnFamily, prefix []byte) Iterator

	// Close releases the snapshot. Iterators must be closed first.
	Close()
}

// Transaction is a writer view with conflict-tracked probes.
type Transaction interface {
	// GetForUpdate reads key and adds it to the transaction's conflict
	// set, locking the probe-then-write sequence against concurrent
	// writers
	GetForUpdate(cf ColumnFamily, key []byte) ([]byte, bool, error)

	// ContainsKeyForUpdate probes key presence with the same conflict
	// tracking as GetForUpdate
	ContainsKeyForUpdate(cf ColumnFamily, key []byte) (bool, error)

	// Put stores a key-value pair
	Put(cf ColumnFamily, key, value []byte) error

	// PutEmpty stores a key with an empty value
	PutEmpty(cf ColumnFamily, key []byte) error

	// Delete removes a key
	Delete(cf ColumnFamily, key []byte) error

	// Reader returns a read view over the transaction's own uncommitted
	// state. It borrows the transaction; closing it is a no-op.
	Reader() Reader
}

// Iterator is a forward scan over one column family. Errors are surfaced
// out of band through Err; after Err returns non-nil the iterator is fused
// and Next returns false forever.
type Iterator interface {
	// Next advances to the next row and reports whether one exists
	Next() bool

	// Key returns the current key without the column family prefix. The
	// slice is only valid until the next call to Next.
	Key() []byte

	// Value returns the current value
	Value() ([]byte, error)

	// Err returns the first error the scan hit, if any
	Err() error

	Close()
}
