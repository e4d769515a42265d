package nostr

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Extension is the NIP-07 signer interface browsers inject as window.nostr.
type Extension interface {
	// GetPublicKey returns the hex x-only public key.
	GetPublicKey(ctx context.Context) (string, error)
	// SignEvent fills in pubkey, id and sig.
	SignEvent(ctx context.Context, ev *Event) (*Event, error)
}

// KeySigner is an Extension holding a local secp256k1 key.
type KeySigner struct {
	priv *btcec.PrivateKey
}

var _ Extension = (*KeySigner)(nil)

func NewKeySigner(priv *btcec.PrivateKey) *KeySigner { return &KeySigner{priv: priv} }

// GenerateKeySigner returns a signer with a fresh random key.
func GenerateKeySigner() (*KeySigner, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return NewKeySigner(priv), nil
}

// KeySignerFromHex parses a 32-byte hex secret key.
func KeySignerFromHex(secret string) (*KeySigner, error) {
	raw, err := hex.DecodeString(secret)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("nostr: secret key must be 32 hex bytes")
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return NewKeySigner(priv), nil
}

func (k *KeySigner) PublicKey() string {
	return hex.EncodeToString(schnorr.SerializePubKey(k.priv.PubKey()))
}

func (k *KeySigner) GetPublicKey(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return k.PublicKey(), nil
}

func (k *KeySigner) SignEvent(ctx context.Context, ev *Event) (*Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := *ev
	out.PubKey = k.PublicKey()
	if out.Tags == nil {
		out.Tags = [][]string{}
	}

	id, err := out.Hash()
	if err != nil {
		return nil, err
	}
	sig, err := schnorr.Sign(k.priv, id)
	if err != nil {
		return nil, fmt.Errorf("nostr: sign: %w", err)
	}

	out.ID = hex.EncodeToString(id)
	out.Sig = hex.EncodeToString(sig.Serialize())
	return &out, nil
}
