package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/getkayan/shogun/internal/logger"
	"github.com/getkayan/shogun/keys"
	"github.com/getkayan/shogun/sea"
)

// DB is the reference Database: one user session over a Directory.
type DB struct {
	dir  Directory
	user *session
}

var _ Database = (*DB)(nil)

// New returns a DB over dir.
func New(dir Directory) *DB {
	return &DB{dir: dir, user: &session{dir: dir}}
}

// NewMemory returns a DB backed by a fresh MemoryDirectory.
func NewMemory() *DB {
	return New(NewMemoryDirectory())
}

func (db *DB) User() User { return db.user }

// Directory returns the underlying record store.
func (db *DB) Directory() Directory { return db.dir }

type session struct {
	dir Directory

	mu  sync.Mutex
	pub string
}

func (s *session) Create(ctx context.Context, alias string, pair keys.Pair) (string, error) {
	if err := prove(pair); err != nil {
		return "", err
	}

	rec := &Record{Pub: pair.Pub, Alias: alias, Epub: pair.Epub, CreatedAt: time.Now().UTC()}
	if err := s.dir.Insert(ctx, rec); err != nil {
		if errors.Is(err, ErrUserExists) {
			return "", ErrUserExists
		}
		return "", fmt.Errorf("graph: create user: %w", err)
	}

	logger.Named("graph").Debug("user created", zap.String("alias", alias), zap.String("pub", pair.Pub))
	return pair.Pub, nil
}

func (s *session) Auth(ctx context.Context, pair keys.Pair) (string, error) {
	if err := prove(pair); err != nil {
		return "", ErrWrongUser
	}

	rec, err := s.dir.Lookup(ctx, pair.Pub)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrWrongUser
		}
		return "", fmt.Errorf("graph: auth user: %w", err)
	}

	s.mu.Lock()
	s.pub = rec.Pub
	s.mu.Unlock()

	return rec.Pub, nil
}

func (s *session) Leave(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.pub = ""
	s.mu.Unlock()
	return nil
}

func (s *session) Is() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pub, s.pub != ""
}

// prove checks that pair.Priv controls pair.Pub.
func prove(pair keys.Pair) error {
	if !pair.Valid() {
		return ErrInvalidPair
	}
	signed, err := sea.Sign("graph:possession:"+pair.Pub, pair)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPair, err)
	}
	if _, err := sea.Verify(signed, pair.Pub); err != nil {
		return ErrInvalidPair
	}
	return nil
}
