// Package nostr authenticates Nostr keys (and, with the deterministic
// fallback, Bitcoin addresses).
package nostr

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

const KindTextNote = 1

var ErrBadEvent = errors.New("nostr: invalid event")

// Event is a NIP-01 event.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// Serialize returns the NIP-01 commitment [0,pubkey,created_at,kind,tags,content].
func (e *Event) Serialize() ([]byte, error) {
	tags := e.Tags
	if tags == nil {
		tags = [][]string{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]any{0, e.PubKey, e.CreatedAt, e.Kind, tags, e.Content}); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Hash is the SHA-256 of the serialized event.
func (e *Event) Hash() ([]byte, error) {
	raw, err := e.Serialize()
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	return sum[:], nil
}

// Verify checks the event id and its BIP-340 signature.
func (e *Event) Verify() error {
	id, err := e.Hash()
	if err != nil {
		return err
	}
	if hex.EncodeToString(id) != e.ID {
		return fmt.Errorf("%w: id mismatch", ErrBadEvent)
	}

	pubBytes, err := hex.DecodeString(e.PubKey)
	if err != nil {
		return fmt.Errorf("%w: pubkey: %v", ErrBadEvent, err)
	}
	pub, err := schnorr.ParsePubKey(pubBytes)
	if err != nil {
		return fmt.Errorf("%w: pubkey: %v", ErrBadEvent, err)
	}

	sigBytes, err := hex.DecodeString(e.Sig)
	if err != nil {
		return fmt.Errorf("%w: sig: %v", ErrBadEvent, err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("%w: sig: %v", ErrBadEvent, err)
	}

	if !sig.Verify(id, pub) {
		return fmt.Errorf("%w: bad signature", ErrBadEvent)
	}
	return nil
}
