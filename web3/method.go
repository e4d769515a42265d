package web3

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/getkayan/shogun/credential"
	"github.com/getkayan/shogun/signer"
)

var errInvalidAddress = errors.New("not an ethereum address")

// Method is the signer.Method for Ethereum accounts. Identifiers are
// addresses; the proof is a personal_sign signature over the signer's
// message.
type Method struct {
	conn *Connector
}

var _ signer.Method = (*Method)(nil)

func NewMethod(conn *Connector) *Method { return &Method{conn: conn} }

func (m *Method) Name() string { return Name }

// Normalize returns the EIP-55 checksummed form of id.
func (m *Method) Normalize(id string) (string, error) {
	id = strings.TrimSpace(id)
	if !common.IsHexAddress(id) {
		return "", fmt.Errorf("%w: %q", errInvalidAddress, id)
	}
	return common.HexToAddress(id).Hex(), nil
}

func (m *Method) Username(id string) string { return "web3_" + strings.ToLower(id) }

func (m *Method) Prove(ctx context.Context, id, message string) (*signer.Proof, error) {
	addr := common.HexToAddress(id)
	sig, err := m.conn.RequestSignature(ctx, addr, message)
	if err != nil {
		return nil, err
	}
	if err := VerifySignature(message, sig, addr); err != nil {
		return nil, err
	}
	return &signer.Proof{ExternalID: addr.Hex(), Signature: sig, Message: message}, nil
}

// Password is the hex Keccak-256 of the signature string. Wallets sign
// deterministically (RFC 6979), so the same account always yields the same
// password.
func (m *Method) Password(p *signer.Proof) (string, error) {
	if p.Signature == "" {
		return "", errors.New("web3: empty signature")
	}
	return hex.EncodeToString(crypto.Keccak256([]byte(p.Signature))), nil
}

func (m *Method) Reverify(ctx context.Context, cred *credential.SigningCredential, payload string) (string, error) {
	addr := common.HexToAddress(cred.ExternalID)
	sig, err := m.conn.RequestSignature(ctx, addr, payload)
	if err != nil {
		return "", err
	}
	if err := VerifySignature(payload, sig, addr); err != nil {
		return "", err
	}
	return sig, nil
}
