package plugin

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/getkayan/shogun/autherr"
	"github.com/getkayan/shogun/core"
	"github.com/getkayan/shogun/credential"
	"github.com/getkayan/shogun/event"
	"github.com/getkayan/shogun/keys"
	"github.com/getkayan/shogun/signer"
)

// AuthEvent is the payload of auth:login and auth:signup.
type AuthEvent struct {
	Method    string `json:"method"`
	Username  string `json:"username"`
	UserPub   string `json:"userPub"`
	IsNewUser bool   `json:"isNewUser,omitempty"`
}

// prepared is a proven credential with its derived pair.
type prepared struct {
	core   core.Core
	signer *signer.Signer
	cred   *credential.SigningCredential
	pair   keys.Pair
}

func (b *Base) prepare(ctx context.Context, id string) (*prepared, error) {
	c, err := b.Core()
	if err != nil {
		return nil, err
	}
	s, err := b.Signer()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, autherr.New(autherr.Validation, autherr.CodeMissingIdentifier, "Identifier required", nil)
	}

	cred, err := s.CreateSigningCredential(ctx, id)
	if err != nil {
		return nil, err
	}
	pair, err := s.CreateDerivedKeyPair(ctx, cred.ExternalID)
	if err != nil {
		return nil, autherr.New(autherr.Authentication, autherr.CodeCredentialGenerationFailed, "Failed to derive keys", err)
	}

	c.SetAuthMethod(b.name)
	return &prepared{core: c, signer: s, cred: cred, pair: pair}, nil
}

// LoginWith proves control of id through the plugin's signer and logs in as
// the derived user.
func (b *Base) LoginWith(ctx context.Context, id string) core.AuthResult {
	p, err := b.prepare(ctx, id)
	if err != nil {
		return b.Fail(err)
	}
	return b.login(ctx, p)
}

func (b *Base) login(ctx context.Context, p *prepared) core.AuthResult {
	res := p.core.Login(ctx, p.cred.Username, p.cred.Password, &p.pair)
	if !res.Success {
		b.log.Debug("login rejected by host", zap.String("code", string(res.Code)))
		return res
	}

	b.remember(ctx, p, res.UserPub)
	b.Emit(event.AuthLogin, AuthEvent{Method: b.name, Username: res.Username, UserPub: res.UserPub})
	return res
}

// SignUpWith proves control of id through the plugin's signer and creates the
// derived user. An existing user is logged into instead.
func (b *Base) SignUpWith(ctx context.Context, id string) core.SignUpResult {
	p, err := b.prepare(ctx, id)
	if err != nil {
		return b.SignUpFail(err)
	}

	res := p.core.SignUp(ctx, p.cred.Username, p.cred.Password, "", &p.pair)
	if !res.Success && res.Code == autherr.CodeUserExists {
		b.log.Debug("user exists, logging in instead", zap.String("username", p.cred.Username))
		return core.SignUpResult{AuthResult: b.login(ctx, p)}
	}
	if !res.Success {
		b.log.Debug("sign up rejected by host", zap.String("code", string(res.Code)))
		return res
	}

	b.remember(ctx, p, res.UserPub)
	b.Emit(event.AuthSignUp, AuthEvent{Method: b.name, Username: res.Username, UserPub: res.UserPub, IsNewUser: res.IsNewUser})
	return res
}

func (b *Base) remember(ctx context.Context, p *prepared, pub string) {
	if err := p.signer.RecordUserPub(ctx, p.cred.ExternalID, pub); err != nil {
		b.log.Warn("failed to record user pub", zap.Error(err))
	}
}
