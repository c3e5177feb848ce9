package storage

import (
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/golang/glog"
)

// maxTxnRetries bounds how many times a conflicting transaction closure is
// re-run before the conflict is surfaced to the caller.
const maxTxnRetries = 16

// BadgerDB implements DB on BadgerDB. Column families are realized as
// single-byte key prefixes inside one keyspace; Badger's SSI transactions
// provide the serializable writer contract and read-only transactions the
// repeatable-read snapshots.
type BadgerDB struct {
	db       *badger.DB
	families map[string]ColumnFamily
}

// OpenBadger opens (or creates) a Badger-backed database at path with the
// declared column families. An empty path opens an in-memory database.
func OpenBadger(path string, defs []ColumnFamilyDefinition) (*BadgerDB, error) {
	if len(defs) > 0xFF {
		return nil, fmt.Errorf("too many column families: %d", len(defs))
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = badgerLogger{}
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	families := make(map[string]ColumnFamily, len(defs))
	for i, def := range defs {
		if _, dup := families[def.Name]; dup {
			db.Close()
			return nil, fmt.Errorf("duplicate column family %q", def.Name)
		}
		families[def.Name] = ColumnFamily{name: def.Name, prefix: byte(i)}
	}

	return &BadgerDB{db: db, families: families}, nil
}

func (d *BadgerDB) ColumnFamily(name string) (ColumnFamily, bool) {
	cf, ok := d.families[name]
	return cf, ok
}

func (d *BadgerDB) Snapshot() Reader {
	return &badgerReader{txn: d.db.NewTransaction(false), owned: true}
}

func (d *BadgerDB) Transaction(f func(Transaction) error) error {
	for attempt := 0; ; attempt++ {
		txn := d.db.NewTransaction(true)
		err := f(&badgerTransaction{txn: txn})
		if err != nil {
			txn.Discard()
			return err
		}
		err = txn.Commit()
		if err == badger.ErrConflict && attempt < maxTxnRetries {
			glog.V(1).Infof("transaction conflict, retrying (attempt %d)", attempt+1)
			continue
		}
		return err
	}
}

func (d *BadgerDB) Close() error {
	return d.db.Close()
}

// Sync flushes pending writes to disk.
func (d *BadgerDB) Sync() error {
	return d.db.Sync()
}

func prefixKey(cf ColumnFamily, key []byte) []byte {
	result := make([]byte, 1+len(key))
	result[0] = cf.prefix
	copy(result[1:], key)
	return result
}

type badgerReader struct {
	txn *badger.Txn
	// owned readers discard their transaction on Close; borrowed readers
	// (a writer's inner view) leave it to the transaction
	owned bool
}

func (r *badgerReader) Get(cf ColumnFamily, key []byte) ([]byte, bool, error) {
	item, err := r.txn.Get(prefixKey(cf, key))
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (r *badgerReader) ContainsKey(cf ColumnFamily, key []byte) (bool, error) {
	_, err := r.txn.Get(prefixKey(cf, key))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *badgerReader) ScanPrefix(cf ColumnFamily, prefix []byte) Iterator {
	full := prefixKey(cf, prefix)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = full
	// Index rows carry empty values; fetch lazily in the rare case one is read
	opts.PrefetchValues = false
	it := r.txn.NewIterator(opts)
	return &badgerIterator{it: it, seek: full}
}

func (r *badgerReader) Close() {
	if r.owned {
		r.txn.Discard()
	}
}

type badgerTransaction struct {
	txn *badger.Txn
}

// Badger registers every read made through an update transaction in its
// conflict set, so plain gets already carry the for-update lock semantics.
func (t *badgerTransaction) GetForUpdate(cf ColumnFamily, key []byte) ([]byte, bool, error) {
	return (&badgerReader{txn: t.txn}).Get(cf, key)
}

func (t *badgerTransaction) ContainsKeyForUpdate(cf ColumnFamily, key []byte) (bool, error) {
	return (&badgerReader{txn: t.txn}).ContainsKey(cf, key)
}

func (t *badgerTransaction) Put(cf ColumnFamily, key, value []byte) error {
	return t.txn.Set(prefixKey(cf, key), value)
}

func (t *badgerTransaction) PutEmpty(cf ColumnFamily, key []byte) error {
	return t.txn.Set(prefixKey(cf, key), nil)
}

func (t *badgerTransaction) Delete(cf ColumnFamily, key []byte) error {
	return t.txn.Delete(prefixKey(cf, key))
}

func (t *badgerTransaction) Reader() Reader {
	return &badgerReader{txn: t.txn}
}

type badgerIterator struct {
	it      *badger.Iterator
	seek    []byte
	started bool
	valid   bool
	err     error
	key     []byte
}

func (i *badgerIterator) Next() bool {
	if i.err != nil {
		return false
	}
	if !i.started {
		i.it.Seek(i.seek)
		i.started = true
	} else if i.valid {
		i.it.Next()
	}
	i.valid = i.it.Valid()
	if !i.valid {
		return false
	}
	// Strip the column family byte
	i.key = i.it.Item().KeyCopy(i.key[:0])[1:]
	return true
}

func (i *badgerIterator) Key() []byte {
	if !i.valid {
		return nil
	}
	return i.key
}

func (i *badgerIterator) Value() ([]byte, error) {
	if !i.valid {
		return nil, ErrKeyNotFound
	}
	return i.it.Item().ValueCopy(nil)
}

func (i *badgerIterator) Err() error {
	return i.err
}

func (i *badgerIterator) Close() {
	i.it.Close()
}

// badgerLogger forwards Badger's internal logging to glog, keeping noise
// behind verbosity levels.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{})   { glog.Errorf(format, args...) }
func (badgerLogger) Warningf(format string, args ...interface{}) { glog.Warningf(format, args...) }
func (badgerLogger) Infof(format string, args ...interface{})    { glog.V(1).Infof(format, args...) }
func (badgerLogger) Debugf(format string, args ...interface{})   { glog.V(2).Infof(format, args...) }
