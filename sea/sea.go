// Package sea produces and checks signatures in the graph database's SEA
// convention: the literal prefix "SEA" followed by a JSON object holding the
// signed message (m) and a base64 P-256 ECDSA signature (s) over SHA-256(m).
package sea

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/getkayan/shogun/keys"
)

const prefix = "SEA"

var ErrMalformed = errors.New("sea: malformed signature envelope")

// Envelope is the decoded form of a SEA signature.
type Envelope struct {
	M string `json:"m"`
	S string `json:"s"`
}

// Sign signs message with the pair's private signing key.
func Sign(message string, pair keys.Pair) (string, error) {
	priv, err := keys.ParsePrivateKey(pair.Priv)
	if err != nil {
		return "", fmt.Errorf("sea: %w", err)
	}

	digest := sha256.Sum256([]byte(message))
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		return "", fmt.Errorf("sea: sign failed: %w", err)
	}

	raw := make([]byte, 64)
	r.FillBytes(raw[:32])
	s.FillBytes(raw[32:])

	body, err := json.Marshal(Envelope{M: message, S: base64.StdEncoding.EncodeToString(raw)})
	if err != nil {
		return "", fmt.Errorf("sea: failed to encode envelope: %w", err)
	}
	return prefix + string(body), nil
}

// Parse decodes a "SEA{...}" string.
func Parse(signed string) (*Envelope, error) {
	body, ok := strings.CutPrefix(signed, prefix)
	if !ok {
		return nil, ErrMalformed
	}

	var env Envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &env, nil
}

// Verify checks signed against the encoded public key and returns the
// message on success.
func Verify(signed, pub string) (string, error) {
	env, err := Parse(signed)
	if err != nil {
		return "", err
	}

	key, err := keys.ParsePublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("sea: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(env.S)
	if err != nil || len(raw) != 64 {
		return "", ErrMalformed
	}

	digest := sha256.Sum256([]byte(env.M))
	r := new(big.Int).SetBytes(raw[:32])
	s := new(big.Int).SetBytes(raw[32:])
	if !ecdsa.Verify(key, digest[:], r, s) {
		return "", errors.New("sea: signature verification failed")
	}
	return env.M, nil
}
