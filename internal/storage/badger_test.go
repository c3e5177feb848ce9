package storage

import (
	"bytes"
	"errors"
	"testing"
)

func testDB(t *testing.T) (*BadgerDB, ColumnFamily, ColumnFamily) {
	t.Helper()
	db, err := OpenBadger(t.TempDir(), []ColumnFamilyDefinition{
		{Name: "data", UseIter: true, MinPrefixSize: 1},
		{Name: "meta", UseIter: false, UnorderedWrites: true},
	})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	data, ok := db.ColumnFamily("data")
	if !ok {
		t.Fatal("data column family missing")
	}
	meta, ok := db.ColumnFamily("meta")
	if !ok {
		t.Fatal("meta column family missing")
	}
	return db, data, meta
}

func TestPutGet(t *testing.T) {
	db, data, meta := testDB(t)

	err := db.Transaction(func(txn Transaction) error {
		if err := txn.Put(data, []byte("k1"), []byte("v1")); err != nil {
			return err
		}
		return txn.PutEmpty(meta, []byte("k2"))
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	r := db.Snapshot()
	defer r.Close()

	value, ok, err := r.Get(data, []byte("k1"))
	if err != nil || !ok {
		t.Fatalf("get k1: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(value, []byte("v1")) {
		t.Errorf("expected v1, got %q", value)
	}

	ok, err = r.ContainsKey(meta, []byte("k2"))
	if err != nil || !ok {
		t.Errorf("expected k2 in meta: ok=%v err=%v", ok, err)
	}

	// Families are isolated from each other
	ok, err = r.ContainsKey(meta, []byte("k1"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("k1 must not leak into meta")
	}
}

func TestScanPrefixOrder(t *testing.T) {
	db, data, _ := testDB(t)

	keys := [][]byte{
		[]byte("a/3"), []byte("a/1"), []byte("b/1"), []byte("a/2"),
	}
	err := db.Transaction(func(txn Transaction) error {
		for _, k := range keys {
			if err := txn.PutEmpty(data, k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	r := db.Snapshot()
	defer r.Close()

	it := r.ScanPrefix(data, []byte("a/"))
	defer it.Close()

	var got []string
	for it.Next() {
		got = append(got, string(it.Key()))
	}
	if err := it.Err(); err != nil {
		t.Fatal(err)
	}

	want := []string{"a/1", "a/2", "a/3"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
			break
		}
	}
}

func TestSnapshotIsolation(t *testing.T) {
	db, data, _ := testDB(t)

	before := db.Snapshot()
	defer before.Close()

	err := db.Transaction(func(txn Transaction) error {
		return txn.PutEmpty(data, []byte("new"))
	})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := before.ContainsKey(data, []byte("new"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("snapshot must not observe a later commit")
	}

	after := db.Snapshot()
	defer after.Close()
	ok, err = after.ContainsKey(data, []byte("new"))
	if err != nil || !ok {
		t.Errorf("fresh snapshot must observe the commit: ok=%v err=%v", ok, err)
	}
}

func TestTransactionRollback(t *testing.T) {
	db, data, _ := testDB(t)

	boom := errors.New("boom")
	err := db.Transaction(func(txn Transaction) error {
		if err := txn.PutEmpty(data, []byte("ghost")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	r := db.Snapshot()
	defer r.Close()
	ok, err := r.ContainsKey(data, []byte("ghost"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("rolled back write must not be visible")
	}
}

func TestTransactionReadsOwnWrites(t *testing.T) {
	db, data, _ := testDB(t)

	err := db.Transaction(func(txn Transaction) error {
		if err := txn.PutEmpty(data, []byte("own")); err != nil {
			return err
		}
		ok, err := txn.Reader().ContainsKey(data, []byte("own"))
		if err != nil {
			return err
		}
		if !ok {
			t.Error("transaction must observe its own writes")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestConcurrentConflictingInserts(t *testing.T) {
	db, data, _ := testDB(t)

	// Two writers race on the same probe-then-write sequence: exactly one
	// may observe the key as absent.
	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		go func() {
			var inserted bool
			err := db.Transaction(func(txn Transaction) error {
				inserted = false
				ok, err := txn.ContainsKeyForUpdate(data, []byte("contended"))
				if err != nil {
					return err
				}
				if ok {
					return nil
				}
				if err := txn.PutEmpty(data, []byte("contended")); err != nil {
					return err
				}
				inserted = true
				return nil
			})
			if err != nil {
				t.Errorf("transaction failed: %v", err)
			}
			results <- inserted
		}()
	}

	wins := 0
	for i := 0; i < 2; i++ {
		if <-results {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one winning insert, got %d", wins)
	}
}
