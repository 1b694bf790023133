package db

import (
	"bytes"
	"errors"
	"testing"
)

func TestMockStorePutGetDelete(t *testing.T) {
	store := NewMockStore()
	defer store.Close()

	if err := store.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Fatalf("got %q, want %q", got, "v")
	}

	ok, err := store.Has([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("has = %v, %v; want true, nil", ok, err)
	}

	if err := store.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get([]byte("k")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("after delete: got %v, want ErrKeyNotFound", err)
	}

	// Deleting a non-existent key is not an error.
	if err := store.Delete([]byte("absent")); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}

func TestMockStoreNilKey(t *testing.T) {
	store := NewMockStore()
	defer store.Close()

	if _, err := store.Get(nil); !errors.Is(err, ErrNilKey) {
		t.Fatalf("get: got %v, want ErrNilKey", err)
	}
	if err := store.Put(nil, []byte("v")); !errors.Is(err, ErrNilKey) {
		t.Fatalf("put: got %v, want ErrNilKey", err)
	}
}

func TestMockStoreGetReturnsCopy(t *testing.T) {
	store := NewMockStore()
	defer store.Close()

	if err := store.Put([]byte("k"), []byte("value")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got[0] = 'X'

	again, err := store.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(again, []byte("value")) {
		t.Fatal("mutating a returned value leaked into the store")
	}
}

func TestMockBatchAppliesInOrder(t *testing.T) {
	store := NewMockStore()
	defer store.Close()

	batch := store.NewBatch()
	defer batch.Close()

	// Later operations on the same key win.
	if err := batch.Put([]byte("k"), []byte("first")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := batch.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := batch.Put([]byte("k"), []byte("last")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got := batch.Count(); got != 3 {
		t.Fatalf("count = %d, want 3", got)
	}

	if err := batch.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := store.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte("last")) {
		t.Fatalf("got %q, want last staged value", got)
	}
}

func TestMockBatchFailureLeavesStoreUntouched(t *testing.T) {
	store := NewMockStore()
	defer store.Close()

	if err := store.Put([]byte("k1"), []byte("old")); err != nil {
		t.Fatalf("put: %v", err)
	}

	store.FailNextCommits(1)

	batch := store.NewBatch()
	defer batch.Close()
	if err := batch.Put([]byte("k1"), []byte("new")); err != nil {
		t.Fatalf("batch put: %v", err)
	}
	if err := batch.Put([]byte("k2"), []byte("v2")); err != nil {
		t.Fatalf("batch put: %v", err)
	}
	if err := batch.Commit(); err == nil {
		t.Fatal("expected injected commit failure")
	}

	got, err := store.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("get k1: %v", err)
	}
	if !bytes.Equal(got, []byte("old")) {
		t.Fatalf("k1 = %q, want pre-failure value", got)
	}
	if _, err := store.Get([]byte("k2")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("k2: got %v, want ErrKeyNotFound", err)
	}

	// The next commit succeeds.
	retry := store.NewBatch()
	defer retry.Close()
	if err := retry.Put([]byte("k2"), []byte("v2")); err != nil {
		t.Fatalf("retry put: %v", err)
	}
	if err := retry.Commit(); err != nil {
		t.Fatalf("retry commit: %v", err)
	}
}

func TestMockBatchClosed(t *testing.T) {
	store := NewMockStore()
	defer store.Close()

	batch := store.NewBatch()
	batch.Close()

	if err := batch.Put([]byte("k"), []byte("v")); !errors.Is(err, ErrBatchClosed) {
		t.Fatalf("put: got %v, want ErrBatchClosed", err)
	}
	if err := batch.Commit(); !errors.Is(err, ErrBatchClosed) {
		t.Fatalf("commit: got %v, want ErrBatchClosed", err)
	}
}

func TestMockStoreClosed(t *testing.T) {
	store := NewMockStore()
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := store.Get([]byte("k")); !errors.Is(err, ErrClosed) {
		t.Fatalf("get: got %v, want ErrClosed", err)
	}
	if err := store.Put([]byte("k"), []byte("v")); !errors.Is(err, ErrClosed) {
		t.Fatalf("put: got %v, want ErrClosed", err)
	}
	if err := store.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("double close: got %v, want ErrClosed", err)
	}
}

func TestMockStoreSnapshotIsCopy(t *testing.T) {
	store := NewMockStore()
	defer store.Close()

	if err := store.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}

	snap := store.Snapshot()
	snap["k"][0] = 'X'

	got, err := store.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Fatal("mutating a snapshot leaked into the store")
	}
}
