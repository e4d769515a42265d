// Package credential holds the bindings between external identities (wallet
// addresses, WebAuthn credential ids, OAuth subjects) and the derived
// identities that control graph users.
//
// Stores key credentials by the lower-cased, trimmed external identifier, so
// "0xABC" and "0xabc" address the same entry, while the credential itself
// keeps the identifier as it was given.
package credential

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("credential: not found")

// SigningCredential binds one external identity to a derived identity.
// Password is the derivation secret; treat it like a password.
type SigningCredential struct {
	Method     string    `json:"method"`
	ExternalID string    `json:"externalId"`
	Username   string    `json:"username"`
	Password   string    `json:"password"`
	Signature  string    `json:"signature"`
	Message    string    `json:"message"`
	PublicKey  string    `json:"publicKey,omitempty"`
	UserPub    string    `json:"gunUserPub,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store is the per-method credential map. Implementations must treat ids
// case-insensitively via Key.
type Store interface {
	Put(ctx context.Context, cred *SigningCredential) error
	Get(ctx context.Context, id string) (*SigningCredential, error)
	List(ctx context.Context) ([]*SigningCredential, error)
	// Delete removes id and reports whether it was present.
	Delete(ctx context.Context, id string) (bool, error)
	SetUserPub(ctx context.Context, id, pub string) error
}

// Key normalizes an external identifier into a store key.
func Key(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
