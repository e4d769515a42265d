package oauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/getkayan/shogun/credential"
	"github.com/getkayan/shogun/signer"
)

var errNotVerified = errors.New("oauth: identity not verified in this session")

// verifiedSet holds identities whose ID tokens were verified by a callback.
type verifiedSet struct {
	mu  sync.RWMutex
	ids map[string]verified
}

type verified struct {
	identity *Identity
	clientID string
}

func (v *verifiedSet) add(id string, ident *Identity, clientID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ids == nil {
		v.ids = make(map[string]verified)
	}
	v.ids[id] = verified{identity: ident, clientID: clientID}
}

func (v *verifiedSet) get(id string) (verified, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.ids[id]
	return e, ok
}

// ID joins provider and subject into the identifier the signer stores.
func ID(provider, subject string) string { return strings.ToLower(provider) + ":" + subject }

func splitID(id string) (provider, subject string, err error) {
	provider, subject, ok := strings.Cut(id, ":")
	if !ok || provider == "" || subject == "" {
		return "", "", fmt.Errorf("oauth: identifier must be provider:subject, got %q", id)
	}
	return provider, subject, nil
}

// method proves an identity by a prior verified callback.
type method struct {
	verified *verifiedSet
}

var _ signer.Method = (*method)(nil)

func (m *method) Name() string { return Name }

func (m *method) Normalize(id string) (string, error) {
	provider, subject, err := splitID(strings.TrimSpace(id))
	if err != nil {
		return "", err
	}
	return ID(provider, subject), nil
}

func (m *method) Username(id string) string {
	provider, subject, _ := splitID(id)
	return "oauth_" + provider + "_" + subject
}

func (m *method) Prove(_ context.Context, id, message string) (*signer.Proof, error) {
	v, ok := m.verified.get(id)
	if !ok {
		return nil, errNotVerified
	}
	provider, subject, _ := splitID(id)
	return &signer.Proof{
		ExternalID: id,
		Signature:  strings.Join([]string{"oauth", provider, subject, v.clientID}, "|"),
		Message:    message,
	}, nil
}

// Password is the hex SHA-256 of "oauth|provider|sub|clientID".
func (m *method) Password(p *signer.Proof) (string, error) {
	sum := sha256.Sum256([]byte(p.Signature))
	return hex.EncodeToString(sum[:]), nil
}

func (m *method) Reverify(_ context.Context, cred *credential.SigningCredential, payload string) (string, error) {
	if _, ok := m.verified.get(cred.ExternalID); !ok {
		return "", fmt.Errorf("%w: %v", signer.ErrSignatureVerification, errNotVerified)
	}
	sum := sha256.Sum256([]byte(cred.Signature + "|" + payload))
	return hex.EncodeToString(sum[:]), nil
}
