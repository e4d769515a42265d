// Package keys derives deterministic multi-curve key material for Shogun.
//
// A single secret (a password, or a password-equivalent produced by one of the
// authentication methods) is stretched with PBKDF2-HMAC-SHA256 once per key
// type, each with its own versioned salt, and the result is turned into a
// legal scalar for the target curve. The same input always yields the same
// Bundle, which is what lets different authentication methods land on the same
// graph-database user.
//
// # Usage
//
//	bundle, err := keys.Derive(ctx, keys.Password("correct-password"),
//	    []string{"app-scope"},
//	    keys.Options{P256: true, Ethereum: true},
//	)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(bundle.Pub, bundle.Ethereum.Address)
//
// Derive performs no I/O and holds no shared state, so it is safe to call
// concurrently.
package keys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
)

// Iterations is the PBKDF2 work factor. Changing it changes every derived key.
const Iterations = 300000

const (
	stretchedLen = 32
	minInputLen  = 16

	saltSigning    = "signing-v1"
	saltEncryption = "encryption-v1"
	saltBitcoin    = "secp256k1-bitcoin-v1"
	saltEthereum   = "secp256k1-ethereum-v1"
)

// ErrInsufficientEntropy is returned when the combined derivation input is
// shorter than 16 bytes.
var ErrInsufficientEntropy = errors.New("keys: insufficient entropy in derivation input")

// Secret is derivation input material.
type Secret interface {
	secretBytes() []byte
}

// Password is a textual secret. It is NFC-normalized and trimmed before use,
// so visually identical strings derive identical keys.
type Password string

func (p Password) secretBytes() []byte { return []byte(normalize(string(p))) }

// Raw is a binary secret used as-is.
type Raw []byte

func (r Raw) secretBytes() []byte { return []byte(r) }

// Options selects the key types to derive. When nothing is selected the P-256
// signing and encryption pairs are derived.
type Options struct {
	P256     bool
	Bitcoin  bool
	Ethereum bool
}

// Derive stretches secret and extra into a Bundle. A nil secret is replaced by
// 32 random bytes, which produces a one-off identity; deterministic flows must
// always pass a secret.
func Derive(ctx context.Context, secret Secret, extra []string, opts Options) (*Bundle, error) {
	var secretBytes []byte
	if secret == nil {
		secretBytes = make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return nil, fmt.Errorf("keys: failed to generate random secret: %w", err)
		}
	} else {
		secretBytes = secret.secretBytes()
	}

	input := combine(secretBytes, extra)
	if len(input) < minInputLen {
		return nil, ErrInsufficientEntropy
	}

	if !opts.P256 && !opts.Bitcoin && !opts.Ethereum {
		opts.P256 = true
	}

	// Each goroutine owns distinct fields of b.
	var b Bundle
	g, ctx := errgroup.WithContext(ctx)

	if opts.P256 {
		g.Go(func() error {
			pub, priv, err := deriveP256(ctx, input, saltSigning)
			if err != nil {
				return err
			}
			b.Pub, b.Priv = pub, priv
			return nil
		})
		g.Go(func() error {
			pub, priv, err := deriveP256(ctx, input, saltEncryption)
			if err != nil {
				return err
			}
			b.Epub, b.Epriv = pub, priv
			return nil
		})
	}

	if opts.Bitcoin {
		g.Go(func() error {
			k, err := deriveBitcoin(ctx, input)
			if err != nil {
				return err
			}
			b.Bitcoin = k
			return nil
		})
	}

	if opts.Ethereum {
		g.Go(func() error {
			k, err := deriveEthereum(ctx, input)
			if err != nil {
				return err
			}
			b.Ethereum = k
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &b, nil
}

// combine concatenates the secret with the "|"-joined normalized extras.
func combine(secret []byte, extra []string) []byte {
	input := make([]byte, 0, len(secret)+32)
	input = append(input, secret...)

	if len(extra) == 0 {
		return input
	}

	parts := make([]string, len(extra))
	for i, e := range extra {
		parts[i] = normalize(e)
	}
	return append(input, strings.Join(parts, "|")...)
}

func normalize(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func stretch(ctx context.Context, input []byte, salt string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pbkdf2.Key(input, []byte(salt), Iterations, stretchedLen, sha256.New), nil
}
