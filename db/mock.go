package db

import (
	"errors"
	"sync"
	"sync/atomic"
)

// errInjectedCommit is returned by [MockStore] batch commits after
// [MockStore.FailNextCommits].
var errInjectedCommit = errors.New("db: injected commit failure")

// Compile-time interface check.
var _ Store = (*MockStore)(nil)

// MockStore is a fully functional, thread-safe, in-memory implementation
// of [Store]. It requires no disk or external dependencies — ideal for
// unit tests.
//
//	store := db.NewMockStore()
//	defer store.Close()
type MockStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed atomic.Bool

	// failCommits forces the next N batch commits to fail, leaving the
	// store untouched. Used to exercise commit-failure paths in tests.
	failCommits atomic.Int32
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string][]byte),
	}
}

// FailNextCommits makes the next n batch commits fail with an error
// while leaving the stored data unchanged.
func (m *MockStore) FailNextCommits(n int) {
	m.failCommits.Store(int32(n))
}

// Snapshot returns a copy of the current contents. Test helper.
func (m *MockStore) Snapshot() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// Len returns the number of stored keys.
func (m *MockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// ---------------------------------------------------------------------------
// Store implementation
// ---------------------------------------------------------------------------

func (m *MockStore) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return nil, ErrClosed
	}
	if key == nil {
		return nil, ErrNilKey
	}

	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}

	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MockStore) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false, ErrClosed
	}
	if key == nil {
		return false, ErrNilKey
	}

	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *MockStore) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return ErrClosed
	}
	if key == nil {
		return ErrNilKey
	}

	v := make([]byte, len(value))
	copy(v, value)
	m.data[string(key)] = v
	return nil
}

func (m *MockStore) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return ErrClosed
	}
	if key == nil {
		return ErrNilKey
	}

	delete(m.data, string(key))
	return nil
}

func (m *MockStore) NewBatch() Batch {
	return &mockBatch{owner: m}
}

func (m *MockStore) Flush() error {
	if m.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (m *MockStore) Close() error {
	if m.closed.Swap(true) {
		return ErrClosed
	}
	return nil
}

// ---------------------------------------------------------------------------
// Batch implementation
// ---------------------------------------------------------------------------

type mockOp struct {
	key    string
	value  []byte
	delete bool
}

type mockBatch struct {
	owner  *MockStore
	ops    []mockOp
	closed bool
}

func (b *mockBatch) Put(key, value []byte) error {
	if b.closed {
		return ErrBatchClosed
	}
	if key == nil {
		return ErrNilKey
	}
	v := make([]byte, len(value))
	copy(v, value)
	b.ops = append(b.ops, mockOp{key: string(key), value: v})
	return nil
}

func (b *mockBatch) Delete(key []byte) error {
	if b.closed {
		return ErrBatchClosed
	}
	if key == nil {
		return ErrNilKey
	}
	b.ops = append(b.ops, mockOp{key: string(key), delete: true})
	return nil
}

func (b *mockBatch) Count() int {
	return len(b.ops)
}

func (b *mockBatch) Commit() error {
	if b.closed {
		return ErrBatchClosed
	}

	m := b.owner
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return ErrClosed
	}

	// Injected failure happens before any mutation so the all-or-nothing
	// contract holds.
	if n := m.failCommits.Load(); n > 0 {
		m.failCommits.Store(n - 1)
		return errInjectedCommit
	}

	for _, op := range b.ops {
		if op.delete {
			delete(m.data, op.key)
		} else {
			m.data[op.key] = op.value
		}
	}
	return nil
}

func (b *mockBatch) Close() {
	b.closed = true
	b.ops = nil
}
