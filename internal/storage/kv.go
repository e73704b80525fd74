// Package storage defines the key-value store used to persist session blobs
// across process restarts, plus an in-memory implementation.
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrUnreadable marks a stored value that exists but cannot be decoded by the store.
var ErrUnreadable = errors.New("stored value unreadable")

// Keys of the persisted session blobs.
const (
	KeyTokens = "auth_tokens"
	KeyUser   = "auth_user"
	KeyTenant = "auth_tenant"
)

// SessionKeys lists every key written by the session manager.
var SessionKeys = []string{KeyTokens, KeyUser, KeyTenant}

// KV is a string key-value store. Implementations must be safe for concurrent use.
type KV interface {
	// Get returns the stored value; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// Memory is a process-local KV.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory { return &Memory{data: map[string]string{}} }

// Get implements KV.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set implements KV.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Remove implements KV.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
