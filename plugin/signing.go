package plugin

import (
	"context"

	"github.com/getkayan/shogun/credential"
	"github.com/getkayan/shogun/keys"
	"github.com/getkayan/shogun/signer"
)

// The methods below expose the plugin's signer. Each fails with the
// AssertInitialized error before Initialize or after Destroy.

func (b *Base) CreateSigningCredential(ctx context.Context, id string) (*credential.SigningCredential, error) {
	s, err := b.Signer()
	if err != nil {
		return nil, err
	}
	return s.CreateSigningCredential(ctx, id)
}

func (b *Base) CreateAuthenticator(ctx context.Context, id string) (signer.Authenticator, error) {
	s, err := b.Signer()
	if err != nil {
		return nil, err
	}
	return s.CreateAuthenticator(ctx, id)
}

func (b *Base) CreateDerivedKeyPair(ctx context.Context, id string, extra ...string) (keys.Pair, error) {
	s, err := b.Signer()
	if err != nil {
		return keys.Pair{}, err
	}
	return s.CreateDerivedKeyPair(ctx, id, extra...)
}

func (b *Base) SignWithDerivedKeys(ctx context.Context, data any, id string, extra ...string) (string, error) {
	s, err := b.Signer()
	if err != nil {
		return "", err
	}
	return s.SignWithDerivedKeys(ctx, data, id, extra...)
}

func (b *Base) GetSigningCredential(ctx context.Context, id string) (*credential.SigningCredential, error) {
	s, err := b.Signer()
	if err != nil {
		return nil, err
	}
	return s.GetCredential(ctx, id)
}

func (b *Base) ListSigningCredentials(ctx context.Context) ([]*credential.SigningCredential, error) {
	s, err := b.Signer()
	if err != nil {
		return nil, err
	}
	return s.ListCredentials(ctx)
}

func (b *Base) RemoveSigningCredential(ctx context.Context, id string) (bool, error) {
	s, err := b.Signer()
	if err != nil {
		return false, err
	}
	return s.RemoveCredential(ctx, id)
}

// CreateGunUserFromSigningCredential creates or logs into the graph user of
// id on the host's database.
func (b *Base) CreateGunUserFromSigningCredential(ctx context.Context, id string) (string, error) {
	c, err := b.Core()
	if err != nil {
		return "", err
	}
	s, err := b.Signer()
	if err != nil {
		return "", err
	}
	return s.CreateGunUser(ctx, id, c.Graph())
}

func (b *Base) GetGunUserPubFromSigningCredential(ctx context.Context, id string) (string, error) {
	s, err := b.Signer()
	if err != nil {
		return "", err
	}
	return s.GetGunUserPub(ctx, id)
}

func (b *Base) VerifyConsistency(ctx context.Context, id, expectedUserPub string) (*signer.Consistency, error) {
	s, err := b.Signer()
	if err != nil {
		return nil, err
	}
	return s.VerifyConsistency(ctx, id, expectedUserPub)
}

// SetupConsistentOneshotSigning prepares id for repeated signing and creates
// its graph user on the host's database.
func (b *Base) SetupConsistentOneshotSigning(ctx context.Context, id string) (*signer.OneshotSetup, error) {
	c, err := b.Core()
	if err != nil {
		return nil, err
	}
	s, err := b.Signer()
	if err != nil {
		return nil, err
	}
	return s.SetupConsistentOneshotSigning(ctx, id, c.Graph())
}
