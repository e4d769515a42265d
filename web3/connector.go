package web3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/getkayan/shogun/internal/logger"
	"github.com/getkayan/shogun/signer"
)

// DefaultTimeout bounds every wallet request whose context has no earlier
// deadline.
const DefaultTimeout = 60 * time.Second

var ErrNoAccounts = errors.New("web3: wallet returned no accounts")

// Connector talks to a wallet through its Provider.
type Connector struct {
	provider Provider
	timeout  time.Duration
	log      *zap.Logger
}

type ConnectorOption func(*Connector)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) ConnectorOption {
	return func(c *Connector) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewConnector returns a connector for p. A nil p yields a connector that
// reports itself unavailable.
func NewConnector(p Provider, opts ...ConnectorOption) *Connector {
	c := &Connector{provider: p, timeout: DefaultTimeout, log: logger.Named("web3")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connector) request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.provider.Request(ctx, method, params...)
}

func (c *Connector) IsAvailable() bool { return c != nil && c.provider != nil }

// Connect asks the wallet for its accounts and returns the first.
func (c *Connector) Connect(ctx context.Context) (common.Address, error) {
	if !c.IsAvailable() {
		return common.Address{}, fmt.Errorf("%w: no web3 provider", signer.ErrUnavailable)
	}

	raw, err := c.request(ctx, "eth_requestAccounts")
	if err != nil {
		return common.Address{}, fmt.Errorf("web3: request accounts: %w", err)
	}
	var accts []string
	if err := json.Unmarshal(raw, &accts); err != nil {
		return common.Address{}, fmt.Errorf("web3: decode accounts: %w", err)
	}
	if len(accts) == 0 || !common.IsHexAddress(accts[0]) {
		return common.Address{}, ErrNoAccounts
	}

	addr := common.HexToAddress(accts[0])
	c.log.Debug("wallet connected", zap.String("address", addr.Hex()))
	return addr, nil
}

// RequestSignature asks the wallet to personal_sign message as addr and
// returns the 0x-prefixed 65-byte signature.
func (c *Connector) RequestSignature(ctx context.Context, addr common.Address, message string) (string, error) {
	if !c.IsAvailable() {
		return "", fmt.Errorf("%w: no web3 provider", signer.ErrUnavailable)
	}

	raw, err := c.request(ctx, "personal_sign", hexutil.Encode([]byte(message)), addr.Hex())
	if err != nil {
		return "", fmt.Errorf("web3: personal_sign: %w", err)
	}
	var sig string
	if err := json.Unmarshal(raw, &sig); err != nil {
		return "", fmt.Errorf("web3: decode signature: %w", err)
	}
	return sig, nil
}

// RecoverAddress returns the account that produced an EIP-191 signature over
// message. The recovery byte may be 0/1 or 27/28.
func RecoverAddress(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", signer.ErrSignatureVerification, err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: signature is %d bytes", signer.ErrSignatureVerification, len(sig))
	}

	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("%w: bad recovery id", signer.ErrSignatureVerification)
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", signer.ErrSignatureVerification, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature checks that signature over message was made by addr.
func VerifySignature(message, signature string, addr common.Address) error {
	got, err := RecoverAddress(message, signature)
	if err != nil {
		return err
	}
	if got != addr {
		return fmt.Errorf("%w: signed by %s, expected %s", signer.ErrSignatureVerification, got.Hex(), addr.Hex())
	}
	return nil
}
