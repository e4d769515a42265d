package nostr

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcutil/base58"
	"github.com/btcsuite/btcutil/bech32"
)

var errInvalidIdentifier = errors.New("not a nostr public key or bitcoin address")

// IDKind tells the identifier forms apart.
type IDKind int

const (
	KindUnknown IDKind = iota
	KindPubKey
	KindBitcoin
)

// ParseIdentifier accepts a hex x-only public key, an npub, or a Base58Check
// Bitcoin address. Public keys come back as lower-case hex.
func ParseIdentifier(id string) (string, IDKind, error) {
	id = strings.TrimSpace(id)

	if strings.HasPrefix(strings.ToLower(id), "npub1") {
		pub, err := DecodeNpub(id)
		if err != nil {
			return "", KindUnknown, err
		}
		return pub, KindPubKey, nil
	}

	if raw, err := hex.DecodeString(id); err == nil && len(raw) == 32 {
		if _, err := schnorr.ParsePubKey(raw); err != nil {
			return "", KindUnknown, fmt.Errorf("%w: %v", errInvalidIdentifier, err)
		}
		return strings.ToLower(id), KindPubKey, nil
	}

	if payload, version, err := base58.CheckDecode(id); err == nil && len(payload) == 20 && (version == 0x00 || version == 0x05) {
		return id, KindBitcoin, nil
	}

	return "", KindUnknown, fmt.Errorf("%w: %q", errInvalidIdentifier, id)
}

// DecodeNpub returns the hex public key inside a NIP-19 npub.
func DecodeNpub(npub string) (string, error) {
	hrp, data, err := bech32.Decode(strings.ToLower(npub))
	if err != nil {
		return "", fmt.Errorf("nostr: decode npub: %w", err)
	}
	if hrp != "npub" {
		return "", fmt.Errorf("nostr: unexpected prefix %q", hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil || len(raw) != 32 {
		return "", fmt.Errorf("nostr: npub payload is not a 32-byte key")
	}
	return hex.EncodeToString(raw), nil
}

// EncodeNpub renders a hex public key as a NIP-19 npub.
func EncodeNpub(pub string) (string, error) {
	raw, err := hex.DecodeString(pub)
	if err != nil || len(raw) != 32 {
		return "", fmt.Errorf("nostr: public key must be 32 hex bytes")
	}
	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode("npub", data)
}

// DeterministicSignature is the 128 hex character pseudo-signature bound to
// address and message. It is a rolling hash, not a signature: anyone who
// knows the address can reproduce it.
func DeterministicSignature(address, message string) string {
	data := utf16.Encode([]rune(address + "_" + message + "_shogun_deterministic"))

	var b strings.Builder
	var h int32
	for i, c := range data {
		h = h*31 + int32(c)
		if i%4 == 3 {
			v := int64(h)
			if v < 0 {
				v = -v
			}
			fmt.Fprintf(&b, "%08x", v)
		}
	}

	out := b.String()
	if len(out) < 128 {
		out += strings.Repeat("0", 128-len(out))
	}
	return out[:128]
}
