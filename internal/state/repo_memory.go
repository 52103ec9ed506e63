package state

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]map[Key][]byte
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]map[Key][]byte)}
}

// Get returns a copy of the stored value.
func (r *MemoryRepo) Get(ctx context.Context, workspaceID string, key Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !key.Valid() {
		return nil, ErrUnknownKey
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.data[workspaceID][key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

// Put stores a copy of value, replacing any previous one.
func (r *MemoryRepo) Put(ctx context.Context, workspaceID string, key Key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !key.Valid() {
		return ErrUnknownKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	byKey, ok := r.data[workspaceID]
	if !ok {
		byKey = make(map[Key][]byte)
		r.data[workspaceID] = byKey
	}
	byKey[key] = append([]byte(nil), value...)
	return nil
}
