package webauthn

import (
	"context"
	"fmt"
	"strings"

	"github.com/getkayan/shogun/autherr"
	"github.com/getkayan/shogun/core"
	"github.com/getkayan/shogun/plugin"
	"github.com/getkayan/shogun/signer"
)

const (
	Name = "webauthn"

	unsupportedMessage = "WebAuthn is not supported by this browser"
)

// Plugin logs users in with passkeys. On a platform without WebAuthn it
// initializes as a disabled plugin whose logins fail with
// WEBAUTHN_UNSUPPORTED.
type Plugin struct {
	plugin.Base
	w          *Webauthn
	signerOpts []signer.Option
}

var _ plugin.AuthPlugin = (*Plugin)(nil)

func NewPlugin(w *Webauthn, opts ...signer.Option) *Plugin {
	return &Plugin{Base: plugin.NewBase(Name), w: w, signerOpts: opts}
}

func (p *Plugin) Initialize(c core.Core) error {
	p.Attach(c, signer.New(NewMethod(p.w), p.signerOpts...))
	if !p.w.IsSupported() {
		p.Logger().Warn("webauthn not supported, plugin disabled")
	}
	return nil
}

func (p *Plugin) Destroy() {
	p.w.AbortAuthentication()
	p.Detach()
}

func (p *Plugin) IsAvailable(context.Context) bool { return p.w.IsSupported() }

func (p *Plugin) Webauthn() *Webauthn { return p.w }

// SignUp registers a passkey for username and creates the derived user.
func (p *Plugin) SignUp(ctx context.Context, username string) core.SignUpResult {
	if err := p.ready(); err != nil {
		return p.SignUpFail(err)
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return p.SignUpWith(ctx, username)
	}
	if err := ValidateUsername(username); err != nil {
		return p.SignUpFail(fmt.Errorf("%w: %v", signer.ErrInvalidIdentifier, err))
	}
	if _, ok := p.w.Registration(username); !ok {
		if _, err := p.w.CreateAccount(ctx, username); err != nil {
			return p.SignUpFail(autherr.New(autherr.Authentication, autherr.CodeCredentialGenerationFailed,
				"Failed to create WebAuthn credential", err))
		}
	}
	return p.SignUpWith(ctx, username)
}

func (p *Plugin) Login(ctx context.Context, username string) core.AuthResult {
	if err := p.ready(); err != nil {
		return p.Fail(err)
	}
	return p.LoginWith(ctx, username)
}

// AbortAuthentication cancels a pending passkey prompt.
func (p *Plugin) AbortAuthentication() { p.w.AbortAuthentication() }

func (p *Plugin) ready() error {
	if err := p.AssertInitialized(); err != nil {
		return err
	}
	if !p.w.IsSupported() {
		return autherr.New(autherr.Environment, autherr.CodeWebAuthnUnsupported, unsupportedMessage, ErrUnsupported)
	}
	return nil
}
