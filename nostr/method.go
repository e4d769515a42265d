package nostr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/getkayan/shogun/credential"
	"github.com/getkayan/shogun/signer"
)

// Method is the signer.Method for Nostr keys and Bitcoin addresses.
//
// The password always comes from DeterministicSignature so it is stable. When
// an extension is present, control of a public key is additionally proven by
// a signed event. Without one (and for Bitcoin addresses, which cannot be
// proven through NIP-07) Prove refuses unless the deterministic fallback is
// enabled.
type Method struct {
	conn     *Connector
	fallback bool
}

var _ signer.Method = (*Method)(nil)

func NewMethod(conn *Connector, fallback bool) *Method {
	return &Method{conn: conn, fallback: fallback}
}

func (m *Method) Name() string { return Name }

func (m *Method) Normalize(id string) (string, error) {
	out, _, err := ParseIdentifier(id)
	return out, err
}

func (m *Method) Username(id string) string { return "nostr_" + strings.ToLower(id) }

func (m *Method) Prove(ctx context.Context, id, message string) (*signer.Proof, error) {
	proof := &signer.Proof{
		ExternalID: id,
		Signature:  DeterministicSignature(id, message),
		Message:    message,
	}

	if m.interactive(id) {
		if _, err := m.conn.RequestSignature(ctx, id, message); err != nil {
			return nil, err
		}
		proof.PublicKey = id
		return proof, nil
	}

	if !m.fallback {
		return nil, fmt.Errorf("%w: cannot prove control of %s without an extension", signer.ErrUnavailable, id)
	}
	m.conn.log.Warn("using deterministic signature, identity is not key-bound", zap.String("id", id))
	return proof, nil
}

// Password is the hex SHA-256 of the deterministic signature.
func (m *Method) Password(p *signer.Proof) (string, error) {
	sum := sha256.Sum256([]byte(p.Signature))
	return hex.EncodeToString(sum[:]), nil
}

func (m *Method) Reverify(ctx context.Context, cred *credential.SigningCredential, payload string) (string, error) {
	if m.interactive(cred.ExternalID) {
		ev, err := m.conn.RequestSignature(ctx, cred.ExternalID, payload)
		if err != nil {
			return "", err
		}
		return ev.Sig, nil
	}
	if !m.fallback {
		return "", fmt.Errorf("%w: no nostr extension", signer.ErrUnavailable)
	}
	return DeterministicSignature(cred.ExternalID, payload), nil
}

func (m *Method) interactive(id string) bool {
	if !m.conn.IsAvailable() {
		return false
	}
	_, kind, err := ParseIdentifier(id)
	return err == nil && kind == KindPubKey
}
