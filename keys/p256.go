package keys

import (
	"context"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var p256Order = elliptic.P256().Params().N

// clampP256 maps a stretched candidate onto a legal P-256 scalar. Zero becomes
// 1 and anything at or above the group order becomes order-1. The remapping is
// part of the derivation contract; do not replace it with re-hashing.
func clampP256(candidate []byte) []byte {
	d := new(big.Int).SetBytes(candidate)

	switch {
	case d.Sign() == 0:
		d.SetInt64(1)
	case d.Cmp(p256Order) >= 0:
		d.Sub(p256Order, big.NewInt(1))
	}

	out := make([]byte, 32)
	return d.FillBytes(out)
}

func deriveP256(ctx context.Context, input []byte, salt string) (pub, priv string, err error) {
	stretched, err := stretch(ctx, input, salt)
	if err != nil {
		return "", "", err
	}

	scalar := clampP256(stretched)
	key, err := ecdh.P256().NewPrivateKey(scalar)
	if err != nil {
		return "", "", fmt.Errorf("keys: invalid p256 scalar for %s: %w", salt, err)
	}

	// Uncompressed point: 0x04 || X || Y.
	point := key.PublicKey().Bytes()
	pub = encodeCoordinates(point[1:33], point[33:65])
	priv = base64.RawURLEncoding.EncodeToString(scalar)
	return pub, priv, nil
}

func encodeCoordinates(x, y []byte) string {
	return base64.RawURLEncoding.EncodeToString(x) + "." + base64.RawURLEncoding.EncodeToString(y)
}

// ParsePublicKey decodes a "<base64url-x>.<base64url-y>" P-256 public key.
func ParsePublicKey(pub string) (*ecdsa.PublicKey, error) {
	xs, ys, ok := strings.Cut(pub, ".")
	if !ok {
		return nil, errors.New("keys: public key must be formatted as x.y")
	}

	x, err := base64.RawURLEncoding.DecodeString(xs)
	if err != nil {
		return nil, fmt.Errorf("keys: invalid public key x coordinate: %w", err)
	}
	y, err := base64.RawURLEncoding.DecodeString(ys)
	if err != nil {
		return nil, fmt.Errorf("keys: invalid public key y coordinate: %w", err)
	}
	if len(x) != 32 || len(y) != 32 {
		return nil, errors.New("keys: public key coordinates must be 32 bytes")
	}

	// Round-trip through ecdh to reject points that are not on the curve.
	point := append([]byte{0x04}, append(x, y...)...)
	if _, err := ecdh.P256().NewPublicKey(point); err != nil {
		return nil, fmt.Errorf("keys: public key is not on P-256: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}, nil
}

// ParsePrivateKey decodes a base64url P-256 scalar into a signing key.
func ParsePrivateKey(priv string) (*ecdsa.PrivateKey, error) {
	scalar, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		return nil, fmt.Errorf("keys: invalid private key encoding: %w", err)
	}

	key, err := ecdh.P256().NewPrivateKey(scalar)
	if err != nil {
		return nil, fmt.Errorf("keys: invalid private key: %w", err)
	}

	point := key.PublicKey().Bytes()
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(point[1:33]),
			Y:     new(big.Int).SetBytes(point[33:65]),
		},
		D: new(big.Int).SetBytes(scalar),
	}, nil
}

// PublicKeyOf returns the encoded public key for an encoded private key.
func PublicKeyOf(priv string) (string, error) {
	key, err := ParsePrivateKey(priv)
	if err != nil {
		return "", err
	}
	x := make([]byte, 32)
	y := make([]byte, 32)
	return encodeCoordinates(key.X.FillBytes(x), key.Y.FillBytes(y)), nil
}
