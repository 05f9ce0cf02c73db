package metadata

import (
	"context"
	"sync"
)

// MockStore is an in-memory Store for tests in any package.
type MockStore struct {
	mu       sync.Mutex
	data     map[string]mockEntry
	nextVer  Version
	closed   bool
	failNext error
}

type mockEntry struct {
	value     []byte
	version   Version
	ephemeral bool
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string]mockEntry), nextVer: 1}
}

var _ Store = (*MockStore)(nil)

func (m *MockStore) Get(_ context.Context, key string) (GetResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return GetResult{}, err
	}
	e, ok := m.data[key]
	if !ok {
		return GetResult{}, nil
	}
	return GetResult{Value: e.value, Version: e.version, Exists: true}, nil
}

func (m *MockStore) Put(_ context.Context, key string, value []byte, opts ...PutOption) (Version, error) {
	return m.put(key, value, false, opts)
}

func (m *MockStore) PutEphemeral(_ context.Context, key string, value []byte, opts ...PutOption) (Version, error) {
	return m.put(key, value, true, opts)
}

func (m *MockStore) put(key string, value []byte, ephemeral bool, opts []PutOption) (Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}

	expectNotExists, expectedVersion := ResolvePutOptions(opts)
	existing, ok := m.data[key]
	if expectNotExists && ok {
		return 0, ErrVersionMismatch
	}
	if expectedVersion != nil && (!ok || existing.version != *expectedVersion) {
		return 0, ErrVersionMismatch
	}

	ver := m.nextVer
	m.nextVer++
	m.data[key] = mockEntry{value: value, version: ver, ephemeral: ephemeral}
	return ver, nil
}

func (m *MockStore) Delete(_ context.Context, key string, expectedVersion *Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	existing, ok := m.data[key]
	if !ok {
		return nil
	}
	if expectedVersion != nil && existing.version != *expectedVersion {
		return ErrVersionMismatch
	}
	delete(m.data, key)
	return nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ExpireSession drops every ephemeral key, as the server does when a
// client's session times out.
func (m *MockStore) ExpireSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.data {
		if e.ephemeral {
			delete(m.data, k)
		}
	}
}

// FailNext makes the next operation return err.
func (m *MockStore) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *MockStore) check() error {
	if m.closed {
		return ErrStoreClosed
	}
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	return nil
}
