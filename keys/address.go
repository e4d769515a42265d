package keys

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160"
)

// bitcoinP2PKHVersion is the mainnet pay-to-pubkey-hash version byte.
const bitcoinP2PKHVersion = 0x00

// BitcoinAddress returns the P2PKH address for a compressed secp256k1 public
// key: Base58Check(0x00 || RIPEMD160(SHA256(pubkey))).
func BitcoinAddress(compressedPub []byte) (string, error) {
	if len(compressedPub) != 33 {
		return "", fmt.Errorf("keys: compressed public key must be 33 bytes, got %d", len(compressedPub))
	}

	sha := sha256.Sum256(compressedPub)
	h := ripemd160.New()
	if _, err := h.Write(sha[:]); err != nil {
		return "", fmt.Errorf("keys: failed to hash public key: %w", err)
	}

	return base58.CheckEncode(h.Sum(nil), bitcoinP2PKHVersion), nil
}

// EthereumAddress returns the EIP-55 checksummed address for a secp256k1
// public key, accepting the 65-byte uncompressed or 33-byte compressed form.
func EthereumAddress(pub []byte) (string, error) {
	var uncompressed []byte
	switch {
	case len(pub) == 65 && pub[0] == 0x04:
		uncompressed = pub
	case len(pub) == 33 && (pub[0] == 0x02 || pub[0] == 0x03):
		key, err := btcec.ParsePubKey(pub)
		if err != nil {
			return "", fmt.Errorf("keys: failed to parse compressed secp256k1 key: %w", err)
		}
		uncompressed = key.SerializeUncompressed()
	case len(pub) == 0:
		return "", errors.New("keys: public key is required")
	default:
		return "", fmt.Errorf("keys: unsupported public key format: len=%d", len(pub))
	}

	hash := crypto.Keccak256(uncompressed[1:])
	return common.BytesToAddress(hash[12:]).Hex(), nil
}
