package webauthn

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/getkayan/shogun/credential"
	"github.com/getkayan/shogun/signer"
)

// Method is the signer.Method for passkeys. Identifiers are usernames. The
// proof's Signature carries the base64url credential id, which is the only
// stable part of an assertion.
type Method struct {
	w *Webauthn
}

var _ signer.Method = (*Method)(nil)

func NewMethod(w *Webauthn) *Method { return &Method{w: w} }

func (m *Method) Name() string { return Name }

func (m *Method) Normalize(id string) (string, error) {
	id = strings.TrimSpace(id)
	if err := ValidateUsername(id); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Method) Username(id string) string { return id }

func (m *Method) Prove(ctx context.Context, id, message string) (*signer.Proof, error) {
	challenge, err := protocol.CreateChallenge()
	if err != nil {
		return nil, err
	}
	_, reg, err := m.w.Authenticate(ctx, id, challenge)
	if err != nil {
		return nil, err
	}
	return &signer.Proof{
		ExternalID: id,
		Signature:  base64.RawURLEncoding.EncodeToString(reg.CredentialID),
		Message:    message,
		PublicKey:  hex.EncodeToString(reg.PublicKey),
	}, nil
}

// Password is the hex SHA-256 of the raw credential id.
func (m *Method) Password(p *signer.Proof) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(p.Signature)
	if err != nil || len(raw) == 0 {
		return "", fmt.Errorf("webauthn: bad credential id in proof")
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Reverify asserts over SHA-256(payload) and returns the base64url assertion
// signature.
func (m *Method) Reverify(ctx context.Context, cred *credential.SigningCredential, payload string) (string, error) {
	challenge := sha256.Sum256([]byte(payload))
	a, reg, err := m.w.Authenticate(ctx, cred.ExternalID, challenge[:])
	if err != nil {
		return "", err
	}

	want, err := base64.RawURLEncoding.DecodeString(cred.Signature)
	if err != nil || !bytes.Equal(want, reg.CredentialID) {
		return "", fmt.Errorf("%w: credential changed since registration", signer.ErrSignatureVerification)
	}
	return base64.RawURLEncoding.EncodeToString(a.Signature), nil
}
