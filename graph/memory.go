package graph

import (
	"context"
	"sync"
)

// MemoryDirectory keeps records in process memory.
type MemoryDirectory struct {
	mu      sync.RWMutex
	byPub   map[string]*Record
	byAlias map[string]string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byPub:   make(map[string]*Record),
		byAlias: make(map[string]string),
	}
}

func (d *MemoryDirectory) Lookup(_ context.Context, pub string) (*Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.byPub[pub]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (d *MemoryDirectory) LookupAlias(ctx context.Context, alias string) (*Record, error) {
	d.mu.RLock()
	pub, ok := d.byAlias[alias]
	d.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return d.Lookup(ctx, pub)
}

func (d *MemoryDirectory) Insert(_ context.Context, rec *Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byPub[rec.Pub]; ok {
		return ErrUserExists
	}
	if _, ok := d.byAlias[rec.Alias]; ok {
		return ErrUserExists
	}

	cp := *rec
	d.byPub[rec.Pub] = &cp
	d.byAlias[rec.Alias] = rec.Pub
	return nil
}

// Len returns the number of users.
func (d *MemoryDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byPub)
}
