package credential

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a Store backed by a map. Concurrent writes to the same id
// are last-write-wins.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]*SigningCredential
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]*SigningCredential)}
}

func (s *MemoryStore) Put(_ context.Context, cred *SigningCredential) error {
	cp := *cred
	s.mu.Lock()
	s.creds[Key(cred.ExternalID)] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*SigningCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[Key(id)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *cred
	return &cp, nil
}

// List returns all credentials ordered by creation time.
func (s *MemoryStore) List(_ context.Context) ([]*SigningCredential, error) {
	s.mu.RLock()
	out := make([]*SigningCredential, 0, len(s.creds))
	for _, c := range s.creds {
		cp := *c
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return Key(out[i].ExternalID) < Key(out[j].ExternalID)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := Key(id)
	_, ok := s.creds[k]
	delete(s.creds, k)
	return ok, nil
}

func (s *MemoryStore) SetUserPub(_ context.Context, id, pub string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[Key(id)]
	if !ok {
		return ErrNotFound
	}
	cred.UserPub = pub
	return nil
}
