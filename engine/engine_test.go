package engine

import (
	"errors"
	"sync"
	"testing"

	"github.com/tbdingqi/tbleveldb/db"
)

// fakeBackend is an in-memory stand-in for the on-disk store layer. It
// persists contents across close/reopen cycles, tracks which paths
// exist, and exposes the live MockStore of an open path so tests can
// inject commit failures.
type fakeBackend struct {
	mu     sync.Mutex
	exists map[string]bool
	saved  map[string]map[string][]byte
	live   map[string]*db.MockStore
	opens  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		exists: make(map[string]bool),
		saved:  make(map[string]map[string][]byte),
		live:   make(map[string]*db.MockStore),
	}
}

func (b *fakeBackend) opener(path string, create bool) (db.Store, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.exists[path] {
		if !create {
			return nil, errors.New("fake: no database at " + path)
		}
		b.exists[path] = true
	}

	m := db.NewMockStore()
	for k, v := range b.saved[path] {
		if err := m.Put([]byte(k), v); err != nil {
			return nil, err
		}
	}
	b.live[path] = m
	b.opens++
	return &persistentStore{MockStore: m, path: path, be: b}, nil
}

// liveStore returns the MockStore currently open for path.
func (b *fakeBackend) liveStore(t *testing.T, path string) *db.MockStore {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.live[path]
	if !ok {
		t.Fatalf("no live store for %q", path)
	}
	return m
}

// persistentStore saves its contents back to the backend on Close so a
// later open observes persisted state, like a real on-disk database.
type persistentStore struct {
	*db.MockStore
	path string
	be   *fakeBackend
}

func (p *persistentStore) Close() error {
	p.be.mu.Lock()
	p.be.saved[p.path] = p.MockStore.Snapshot()
	delete(p.be.live, p.path)
	p.be.mu.Unlock()
	return p.MockStore.Close()
}

func newTestEngine(t *testing.T) (*Engine, *fakeBackend) {
	t.Helper()
	be := newFakeBackend()
	return New(
		WithBaseDir("."),
		WithStoreOpener(be.opener),
	), be
}

func TestCreateRejectsInvalidSchema(t *testing.T) {
	eng, be := newTestEngine(t)
	defer eng.Close()

	bad := []Schema{
		{Unique: true},
		{KeyParts: []KeyPart{{Length: 4}, {Offset: 4, Length: 4}}, Unique: true},
		{KeyParts: []KeyPart{{Offset: 0, Length: 4}}},
	}
	for i, schema := range bad {
		if err := eng.Create("t", schema); !errors.Is(err, ErrInvalidSchema) {
			t.Fatalf("case %d: got %v, want ErrInvalidSchema", i, err)
		}
	}

	if be.opens != 0 {
		t.Fatalf("invalid schemas opened %d stores", be.opens)
	}
}

func TestCreateThenOpen(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Close()

	if err := eng.Create("t", validSchema()); err != nil {
		t.Fatalf("create: %v", err)
	}

	tbl, err := eng.Open("t", validSchema())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := tbl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestOpenMissingTable(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Close()

	if _, err := eng.Open("absent", validSchema()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("got %v, want ErrStoreUnavailable", err)
	}
}

func TestReferenceCounting(t *testing.T) {
	eng, be := newTestEngine(t)
	defer eng.Close()

	if err := eng.Create("t", validSchema()); err != nil {
		t.Fatalf("create: %v", err)
	}

	t1, err := eng.Open("t", validSchema())
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	t2, err := eng.Open("t", validSchema())
	if err != nil {
		t.Fatalf("second open: %v", err)
	}

	// Both handles share one store: one open at create, one at acquire.
	if be.opens != 2 {
		t.Fatalf("opens = %d, want 2", be.opens)
	}

	if err := t1.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if got := eng.OpenTables(); got != 1 {
		t.Fatalf("after one close: %d registered tables, want 1", got)
	}

	if err := t2.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if got := eng.OpenTables(); got != 0 {
		t.Fatalf("after last close: %d registered tables, want 0", got)
	}
}

func TestReopenReadsPersistedState(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Close()

	if err := eng.Create("t", validSchema()); err != nil {
		t.Fatalf("create: %v", err)
	}

	tbl, err := eng.Open("t", validSchema())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	sess := NewSession()
	if err := tbl.BeginLock(sess, LockWrite); err != nil {
		t.Fatalf("begin lock: %v", err)
	}
	if err := tbl.WriteRow(sess, []byte("abcdpayload")); err != nil {
		t.Fatalf("write row: %v", err)
	}
	if err := tbl.EndLock(sess); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := tbl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Fresh open must read from persisted state, not stale memory.
	tbl2, err := eng.Open("t", validSchema())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer tbl2.Close()

	row, err := tbl2.Lookup([]byte("abcd"))
	if err != nil {
		t.Fatalf("lookup after reopen: %v", err)
	}
	if string(row) != "abcdpayload" {
		t.Fatalf("got row %q, want %q", row, "abcdpayload")
	}
}

func TestDoubleCloseReported(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Close()

	if err := eng.Create("t", validSchema()); err != nil {
		t.Fatalf("create: %v", err)
	}
	tbl, err := eng.Open("t", validSchema())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := tbl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := tbl.Close(); !errors.Is(err, ErrTableNotOpen) {
		t.Fatalf("second close: got %v, want ErrTableNotOpen", err)
	}
}

func TestDropRefusedWhileOpen(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Close()

	if err := eng.Create("t", validSchema()); err != nil {
		t.Fatalf("create: %v", err)
	}
	tbl, err := eng.Open("t", validSchema())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := eng.Drop("t"); !errors.Is(err, ErrTableBusy) {
		t.Fatalf("drop while open: got %v, want ErrTableBusy", err)
	}

	if err := tbl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := eng.Drop("t"); err != nil {
		t.Fatalf("drop after close: %v", err)
	}
}

func TestCreateRefusedWhileOpen(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Close()

	if err := eng.Create("t", validSchema()); err != nil {
		t.Fatalf("create: %v", err)
	}
	tbl, err := eng.Open("t", validSchema())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer tbl.Close()

	if err := eng.Create("t", validSchema()); !errors.Is(err, ErrTableBusy) {
		t.Fatalf("create while open: got %v, want ErrTableBusy", err)
	}
}

func TestCloseReportsLeak(t *testing.T) {
	eng, _ := newTestEngine(t)

	if err := eng.Create("t", validSchema()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := eng.Open("t", validSchema()); err != nil {
		t.Fatalf("open: %v", err)
	}

	// The handle is never closed; shutdown must diagnose the leak.
	if err := eng.Close(); !errors.Is(err, ErrRegistryLeak) {
		t.Fatalf("got %v, want ErrRegistryLeak", err)
	}
	if got := eng.OpenTables(); got != 0 {
		t.Fatalf("after shutdown: %d registered tables, want 0", got)
	}
}

func TestCloseCleanShutdown(t *testing.T) {
	eng, _ := newTestEngine(t)

	if err := eng.Create("t", validSchema()); err != nil {
		t.Fatalf("create: %v", err)
	}
	tbl, err := eng.Open("t", validSchema())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := tbl.Close(); err != nil {
		t.Fatalf("close table: %v", err)
	}

	if err := eng.Close(); err != nil {
		t.Fatalf("clean shutdown returned %v", err)
	}
}

func TestRenameUnsupported(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Close()

	if err := eng.Rename("a", "b"); !errors.Is(err, ErrUnsupportedOperation) {
		t.Fatalf("got %v, want ErrUnsupportedOperation", err)
	}
}

func TestTablePathRejectsEscapes(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Close()

	for _, name := range []string{"", "../evil", "a/../../evil", "/abs"} {
		if err := eng.Create(name, validSchema()); err == nil {
			t.Fatalf("create %q: expected error", name)
		}
	}
}

func TestConcurrentAcquireSingleStore(t *testing.T) {
	eng, be := newTestEngine(t)
	defer eng.Close()

	if err := eng.Create("t", validSchema()); err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	tables := make([]*Table, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			tables[i], errs[i] = eng.Open("t", validSchema())
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d open: %v", i, err)
		}
	}

	// Create opened one store, and exactly one more regardless of how
	// many workers raced the first acquire.
	if be.opens != 2 {
		t.Fatalf("opens = %d, want 2", be.opens)
	}

	for _, tbl := range tables {
		if err := tbl.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	if got := eng.OpenTables(); got != 0 {
		t.Fatalf("%d registered tables after closes, want 0", got)
	}
}
