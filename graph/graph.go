// Package graph is the user space of the graph database Shogun authenticates
// against.
//
// A user is identified by the public half of its P-256 signing pair. Creating
// or authenticating a user requires the full pair, and possession of the
// private key is proven by a SEA round trip before the directory is touched.
// Storage of user records is delegated to a Directory: the in-memory one in
// this package or the GORM-backed one in graph/sqlgraph.
package graph

import (
	"context"
	"errors"
	"time"

	"github.com/getkayan/shogun/keys"
)

// The texts of ErrUserExists and ErrWrongUser match the acks of the graph
// database and are surfaced to users verbatim.
var (
	// ErrUserExists is returned by Create when the alias or key is taken.
	ErrUserExists = errors.New("User already created!")
	// ErrWrongUser is returned by Auth when no user matches the pair.
	ErrWrongUser = errors.New("Wrong user or password.")
	// ErrNotFound is returned by Directory lookups.
	ErrNotFound = errors.New("graph: user not found")
	// ErrInvalidPair is returned when a pair fails the possession check.
	ErrInvalidPair = errors.New("graph: key pair does not prove possession")
)

// Record is the persisted form of a user.
type Record struct {
	Pub       string
	Alias     string
	Epub      string
	CreatedAt time.Time
}

// Directory stores user records. Insert must fail with ErrUserExists when the
// pub or the alias is already present.
type Directory interface {
	Lookup(ctx context.Context, pub string) (*Record, error)
	LookupAlias(ctx context.Context, alias string) (*Record, error)
	Insert(ctx context.Context, rec *Record) error
}

// User is one session against the user space.
type User interface {
	// Create registers pair under alias and returns its pub.
	Create(ctx context.Context, alias string, pair keys.Pair) (string, error)
	// Auth logs the session in as pair and returns its pub.
	Auth(ctx context.Context, pair keys.Pair) (string, error)
	Leave(ctx context.Context) error
	// Is returns the pub of the logged-in user, if any.
	Is() (string, bool)
}

// Database is the handle auth code receives.
type Database interface {
	User() User
}
