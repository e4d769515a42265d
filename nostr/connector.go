package nostr

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/getkayan/shogun/internal/logger"
	"github.com/getkayan/shogun/signer"
)

// DefaultTimeout bounds every extension request whose context has no
// earlier deadline.
const DefaultTimeout = 60 * time.Second

// Connector asks an Extension for signed events.
type Connector struct {
	ext     Extension
	timeout time.Duration
	now     func() time.Time
	log     *zap.Logger
}

func NewConnector(ext Extension) *Connector {
	return &Connector{ext: ext, timeout: DefaultTimeout, now: time.Now, log: logger.Named("nostr")}
}

func (c *Connector) IsAvailable() bool { return c != nil && c.ext != nil }

// Connect returns the extension's hex public key.
func (c *Connector) Connect(ctx context.Context) (string, error) {
	if !c.IsAvailable() {
		return "", fmt.Errorf("%w: no nostr extension", signer.ErrUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pub, err := c.ext.GetPublicKey(ctx)
	if err != nil {
		return "", fmt.Errorf("nostr: get public key: %w", err)
	}
	c.log.Debug("extension connected", zap.String("pubkey", pub))
	return pub, nil
}

// RequestSignature has the extension sign a text note carrying content and
// checks that pubkey signed it.
func (c *Connector) RequestSignature(ctx context.Context, pubkey, content string) (*Event, error) {
	if !c.IsAvailable() {
		return nil, fmt.Errorf("%w: no nostr extension", signer.ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ev, err := c.ext.SignEvent(ctx, &Event{
		CreatedAt: c.now().Unix(),
		Kind:      KindTextNote,
		Tags:      [][]string{},
		Content:   content,
	})
	if err != nil {
		return nil, fmt.Errorf("nostr: sign event: %w", err)
	}

	if ev.PubKey != pubkey {
		return nil, fmt.Errorf("%w: event signed by %s, expected %s", signer.ErrSignatureVerification, ev.PubKey, pubkey)
	}
	if ev.Content != content {
		return nil, fmt.Errorf("%w: extension altered the content", signer.ErrSignatureVerification)
	}
	if err := ev.Verify(); err != nil {
		return nil, fmt.Errorf("%w: %v", signer.ErrSignatureVerification, err)
	}
	return ev, nil
}
