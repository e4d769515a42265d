// Package webauthn authenticates users with platform authenticators
// (passkeys).
//
// The Platform interface stands in for navigator.credentials. The Webauthn
// component builds ceremony options, runs one ceremony at a time with abort
// and timeout, and verifies assertions against the registered COSE key.
package webauthn

import (
	"context"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
)

// Platform is the authenticator API of the host environment.
type Platform interface {
	IsSupported() bool
	Create(ctx context.Context, opts *protocol.PublicKeyCredentialCreationOptions) (*Attestation, error)
	Get(ctx context.Context, opts *protocol.PublicKeyCredentialRequestOptions) (*Assertion, error)
}

// Attestation is the part of a new credential the relying party keeps.
type Attestation struct {
	CredentialID []byte
	// PublicKey is the COSE-encoded credential public key.
	PublicKey []byte
}

type Assertion struct {
	CredentialID      []byte
	AuthenticatorData []byte
	ClientDataJSON    []byte
	Signature         []byte
	UserHandle        []byte
}

// Registration is a credential registered for a username.
type Registration struct {
	Username     string    `json:"username"`
	UserID       []byte    `json:"userId"`
	CredentialID []byte    `json:"credentialId"`
	PublicKey    []byte    `json:"publicKey"`
	SignCount    uint32    `json:"signCount"`
	CreatedAt    time.Time `json:"createdAt"`
}
