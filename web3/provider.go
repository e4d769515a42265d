// Package web3 authenticates Ethereum wallet holders by EIP-191
// personal_sign signatures.
package web3

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Provider is an EIP-1193 request function, the shape injected wallets
// expose as window.ethereum.request.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

var ErrUnsupportedMethod = errors.New("web3: unsupported provider method")

// KeyProvider is a Provider backed by a single local key. It answers the
// account and personal_sign requests the connector makes.
type KeyProvider struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID uint64
}

var _ Provider = (*KeyProvider)(nil)

func NewKeyProvider(key *ecdsa.PrivateKey) *KeyProvider {
	return &KeyProvider{key: key, address: crypto.PubkeyToAddress(key.PublicKey), chainID: 1}
}

// NewKeyProviderHex builds a KeyProvider from a hex private key, with or
// without the 0x prefix.
func NewKeyProviderHex(hexKey string) (*KeyProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("web3: parse key: %w", err)
	}
	return NewKeyProvider(key), nil
}

func (p *KeyProvider) Address() common.Address { return p.address }

func (p *KeyProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch method {
	case "eth_requestAccounts", "eth_accounts":
		return json.Marshal([]string{p.address.Hex()})
	case "eth_chainId":
		return json.Marshal(hexutil.EncodeUint64(p.chainID))
	case "personal_sign":
		return p.personalSign(params)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
}

func (p *KeyProvider) personalSign(params []any) (json.RawMessage, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("web3: personal_sign wants 2 params, got %d", len(params))
	}
	data, ok := params[0].(string)
	if !ok {
		return nil, errors.New("web3: personal_sign data must be a hex string")
	}
	addr, ok := params[1].(string)
	if !ok || !common.IsHexAddress(addr) || common.HexToAddress(addr) != p.address {
		return nil, fmt.Errorf("web3: unknown account %v", params[1])
	}

	msg, err := hexutil.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("web3: decode personal_sign data: %w", err)
	}

	sig, err := crypto.Sign(accounts.TextHash(msg), p.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return json.Marshal(hexutil.Encode(sig))
}
