package keys

import (
	"context"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// clampSecp256k1 is the secp256k1 counterpart of clampP256: zero becomes 1 and
// overflowing candidates become order-1.
func clampSecp256k1(candidate []byte) []byte {
	var s secp256k1.ModNScalar
	overflow := s.SetByteSlice(candidate)

	switch {
	case overflow:
		s.SetInt(1)
		s.Negate()
	case s.IsZero():
		s.SetInt(1)
	}

	b := s.Bytes()
	return b[:]
}

func deriveSecp256k1(ctx context.Context, input []byte, salt string) (*btcec.PrivateKey, []byte, error) {
	stretched, err := stretch(ctx, input, salt)
	if err != nil {
		return nil, nil, err
	}
	scalar := clampSecp256k1(stretched)
	priv, _ := btcec.PrivKeyFromBytes(scalar)
	return priv, scalar, nil
}

func deriveBitcoin(ctx context.Context, input []byte) (*ChainKey, error) {
	priv, scalar, err := deriveSecp256k1(ctx, input, saltBitcoin)
	if err != nil {
		return nil, err
	}

	compressed := priv.PubKey().SerializeCompressed()
	addr, err := BitcoinAddress(compressed)
	if err != nil {
		return nil, err
	}

	return &ChainKey{
		PrivateKey: hex.EncodeToString(scalar),
		PublicKey:  hex.EncodeToString(compressed),
		Address:    addr,
	}, nil
}

func deriveEthereum(ctx context.Context, input []byte) (*ChainKey, error) {
	priv, scalar, err := deriveSecp256k1(ctx, input, saltEthereum)
	if err != nil {
		return nil, err
	}

	uncompressed := priv.PubKey().SerializeUncompressed()
	addr, err := EthereumAddress(uncompressed)
	if err != nil {
		return nil, err
	}

	return &ChainKey{
		PrivateKey: "0x" + hex.EncodeToString(scalar),
		PublicKey:  "0x" + hex.EncodeToString(uncompressed),
		Address:    addr,
	}, nil
}
