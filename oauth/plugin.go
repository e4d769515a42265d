package oauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/getkayan/shogun/autherr"
	"github.com/getkayan/shogun/config"
	"github.com/getkayan/shogun/core"
	"github.com/getkayan/shogun/plugin"
	"github.com/getkayan/shogun/signer"
)

const (
	Name = "oauth"

	// StateTTL bounds how long an authorization request stays redeemable.
	StateTTL = 10 * time.Minute
)

var ErrUnknownProvider = errors.New("oauth: unknown provider")

type pending struct {
	provider string
	verifier string
	expires  time.Time
}

// Plugin runs OIDC logins. Start with InitiateOAuth, redirect the user, and
// finish with HandleCallback.
type Plugin struct {
	plugin.Base
	connectors map[string]Connector
	verified   verifiedSet
	signerOpts []signer.Option
	now        func() time.Time

	mu      sync.Mutex
	pending map[string]pending
}

var _ plugin.AuthPlugin = (*Plugin)(nil)

// New returns a plugin for the given connectors, keyed by provider name.
func New(connectors map[string]Connector, opts ...signer.Option) *Plugin {
	return &Plugin{
		Base:       plugin.NewBase(Name),
		connectors: connectors,
		signerOpts: opts,
		now:        time.Now,
		pending:    make(map[string]pending),
	}
}

// NewFromConfig discovers every configured provider.
func NewFromConfig(ctx context.Context, providers map[string]config.OAuthProvider, opts ...signer.Option) (*Plugin, error) {
	conns := make(map[string]Connector, len(providers))
	for name, cfg := range providers {
		c, err := NewConnector(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("oauth: provider %s: %w", name, err)
		}
		conns[name] = c
	}
	return New(conns, opts...), nil
}

func (p *Plugin) Initialize(c core.Core) error {
	p.Attach(c, signer.New(&method{verified: &p.verified}, p.signerOpts...))
	return nil
}

func (p *Plugin) Destroy() { p.Detach() }

func (p *Plugin) IsAvailable(context.Context) bool { return len(p.connectors) > 0 }

// InitiateOAuth returns the provider's authorization URL carrying a fresh
// state and PKCE challenge.
func (p *Plugin) InitiateOAuth(provider string) (string, error) {
	if err := p.AssertInitialized(); err != nil {
		return "", err
	}
	conn, ok := p.connectors[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	p.mu.Lock()
	p.prune()
	p.pending[state] = pending{provider: provider, verifier: verifier, expires: p.now().Add(StateTTL)}
	p.mu.Unlock()

	p.Logger().Debug("oauth initiated", zap.String("provider", provider))
	return conn.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// HandleCallback redeems the authorization code and signs up (or logs in)
// the provider's subject.
func (p *Plugin) HandleCallback(ctx context.Context, provider, code, state string) core.SignUpResult {
	if err := p.AssertInitialized(); err != nil {
		return p.SignUpFail(err)
	}

	p.mu.Lock()
	req, ok := p.pending[state]
	delete(p.pending, state)
	p.mu.Unlock()

	if !ok || req.provider != provider || p.now().After(req.expires) {
		return p.SignUpFail(oauthError("Invalid or expired OAuth state", nil))
	}
	conn, ok := p.connectors[provider]
	if !ok {
		return p.SignUpFail(oauthError("Unknown OAuth provider", ErrUnknownProvider))
	}

	ident, err := conn.Exchange(ctx, code, oauth2.VerifierOption(req.verifier))
	if err != nil {
		return p.SignUpFail(oauthError("OAuth token exchange failed", err))
	}
	if ident.Subject == "" {
		return p.SignUpFail(oauthError("OAuth provider returned no subject", nil))
	}

	id := ID(provider, ident.Subject)
	p.verified.add(id, ident, conn.ClientID())
	return p.SignUpWith(ctx, id)
}

// Login logs in as an identity verified by an earlier callback.
func (p *Plugin) Login(ctx context.Context, id string) core.AuthResult {
	if err := p.AssertInitialized(); err != nil {
		return p.Fail(err)
	}
	return p.LoginWith(ctx, id)
}

// SignUp signs up an identity verified by an earlier callback.
func (p *Plugin) SignUp(ctx context.Context, id string) core.SignUpResult {
	if err := p.AssertInitialized(); err != nil {
		return p.SignUpFail(err)
	}
	return p.SignUpWith(ctx, id)
}

func (p *Plugin) prune() {
	now := p.now()
	for s, req := range p.pending {
		if now.After(req.expires) {
			delete(p.pending, s)
		}
	}
}

func oauthError(msg string, err error) error {
	return autherr.New(autherr.Authentication, autherr.CodeOAuthFailed, msg, err)
}
