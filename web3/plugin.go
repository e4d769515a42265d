package web3

import (
	"context"

	"github.com/getkayan/shogun/autherr"
	"github.com/getkayan/shogun/core"
	"github.com/getkayan/shogun/plugin"
	"github.com/getkayan/shogun/signer"
)

const Name = "web3"

// Plugin logs users in with an Ethereum wallet.
type Plugin struct {
	plugin.Base
	conn *Connector
	opts []signer.Option
}

var _ plugin.AuthPlugin = (*Plugin)(nil)

// New returns a plugin using p for wallet requests. opts configure the
// plugin's signer.
func New(p Provider, opts ...signer.Option) *Plugin {
	return NewWithConnector(NewConnector(p), opts...)
}

// NewWithConnector returns a plugin over a configured connector.
func NewWithConnector(conn *Connector, opts ...signer.Option) *Plugin {
	return &Plugin{
		Base: plugin.NewBase(Name),
		conn: conn,
		opts: opts,
	}
}

func (p *Plugin) Initialize(c core.Core) error {
	p.Attach(c, signer.New(NewMethod(p.conn), p.opts...))
	p.Logger().Debug("initialized")
	return nil
}

func (p *Plugin) Destroy() { p.Detach() }

func (p *Plugin) IsAvailable(context.Context) bool { return p.conn.IsAvailable() }

// Connect returns the wallet's first account address.
func (p *Plugin) Connect(ctx context.Context) (string, error) {
	if err := p.AssertInitialized(); err != nil {
		return "", err
	}
	addr, err := p.conn.Connect(ctx)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

func (p *Plugin) Login(ctx context.Context, address string) core.AuthResult {
	if err := p.ready(ctx); err != nil {
		return p.Fail(err)
	}
	return p.LoginWith(ctx, address)
}

func (p *Plugin) SignUp(ctx context.Context, address string) core.SignUpResult {
	if err := p.ready(ctx); err != nil {
		return p.SignUpFail(err)
	}
	return p.SignUpWith(ctx, address)
}

func (p *Plugin) ready(ctx context.Context) error {
	if err := p.AssertInitialized(); err != nil {
		return err
	}
	if !p.IsAvailable(ctx) {
		return autherr.New(autherr.Environment, autherr.CodeWalletUnavailable,
			"Web3 wallet is not available", signer.ErrUnavailable)
	}
	return nil
}
