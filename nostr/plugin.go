package nostr

import (
	"context"
	"time"

	"github.com/getkayan/shogun/autherr"
	"github.com/getkayan/shogun/core"
	"github.com/getkayan/shogun/plugin"
	"github.com/getkayan/shogun/signer"
)

const Name = "nostr"

type Option func(*Plugin)

// WithSignerOptions configures the plugin's signer.
func WithSignerOptions(opts ...signer.Option) Option {
	return func(p *Plugin) { p.signerOpts = append(p.signerOpts, opts...) }
}

// WithDeterministicFallback lets identifiers log in without an extension by
// knowledge of the identifier alone. Only for testing and migrations.
func WithDeterministicFallback() Option {
	return func(p *Plugin) { p.fallback = true }
}

// WithTimeout overrides DefaultTimeout for extension requests.
func WithTimeout(d time.Duration) Option {
	return func(p *Plugin) {
		if d > 0 {
			p.conn.timeout = d
		}
	}
}

// Plugin logs users in with a Nostr extension.
type Plugin struct {
	plugin.Base
	conn       *Connector
	fallback   bool
	signerOpts []signer.Option
}

var _ plugin.AuthPlugin = (*Plugin)(nil)

func New(ext Extension, opts ...Option) *Plugin {
	p := &Plugin{Base: plugin.NewBase(Name), conn: NewConnector(ext)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) Initialize(c core.Core) error {
	p.Attach(c, signer.New(NewMethod(p.conn, p.fallback), p.signerOpts...))
	return nil
}

func (p *Plugin) Destroy() { p.Detach() }

func (p *Plugin) IsAvailable(context.Context) bool { return p.conn.IsAvailable() || p.fallback }

// Connect returns the extension's public key.
func (p *Plugin) Connect(ctx context.Context) (string, error) {
	if err := p.AssertInitialized(); err != nil {
		return "", err
	}
	return p.conn.Connect(ctx)
}

// Login logs in as id, or as the extension's key when id is empty.
func (p *Plugin) Login(ctx context.Context, id string) core.AuthResult {
	id, err := p.resolve(ctx, id)
	if err != nil {
		return p.Fail(err)
	}
	return p.LoginWith(ctx, id)
}

func (p *Plugin) SignUp(ctx context.Context, id string) core.SignUpResult {
	id, err := p.resolve(ctx, id)
	if err != nil {
		return p.SignUpFail(err)
	}
	return p.SignUpWith(ctx, id)
}

func (p *Plugin) resolve(ctx context.Context, id string) (string, error) {
	if err := p.AssertInitialized(); err != nil {
		return "", err
	}
	if !p.IsAvailable(ctx) {
		return "", autherr.New(autherr.Environment, autherr.CodeWalletUnavailable,
			"Nostr extension is not available", signer.ErrUnavailable)
	}
	if id == "" && p.conn.IsAvailable() {
		return p.conn.Connect(ctx)
	}
	return id, nil
}
