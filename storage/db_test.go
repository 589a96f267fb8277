package storage

import (
	"errors"
	"testing"
)

func testBackend(t *testing.T, db Database) {
	t.Helper()
	key := []byte("mailbox/state-root")

	if _, err := db.Get(key); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound for missing key, got %v", err)
	}
	ok, err := db.Has(key)
	if err != nil || ok {
		t.Fatalf("missing key reported present: %v %v", ok, err)
	}

	value := []byte{0xde, 0xad}
	if err := db.Put(key, value); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 || got[0] != 0xde || got[1] != 0xad {
		t.Fatalf("unexpected value: %x", got)
	}
	ok, err = db.Has(key)
	if err != nil || !ok {
		t.Fatalf("stored key reported missing: %v %v", ok, err)
	}
}

func TestMemDBBackend(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	testBackend(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	value := []byte{1}
	if err := db.Put([]byte("k"), value); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 9
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got[0] != 1 {
		t.Fatalf("stored value aliased caller bytes: %x", got)
	}
}

func TestLevelDBBackend(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()
	testBackend(t, db)
}
