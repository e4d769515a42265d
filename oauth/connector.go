// Package oauth logs users in through OpenID Connect providers.
//
// The provider's verified subject is turned into a deterministic credential
// (username oauth_<provider>_<sub>), so the same account is reached from any
// device without storing provider tokens.
package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/getkayan/shogun/config"
)

// Identity is what a provider asserts about the user.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// Connector runs the authorization code flow against one provider.
type Connector interface {
	ClientID() string
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	// Exchange redeems code and returns the verified ID token identity.
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*Identity, error)
}

type oidcConnector struct {
	cfg      *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewConnector discovers the provider at cfg.Issuer.
func NewConnector(ctx context.Context, cfg config.OAuthProvider) (Connector, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oauth: discover %s: %w", cfg.Issuer, err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopes,
	}
	return newOIDCConnector(oc, provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})), nil
}

func newOIDCConnector(cfg *oauth2.Config, verifier *oidc.IDTokenVerifier) *oidcConnector {
	return &oidcConnector{cfg: cfg, verifier: verifier}
}

func (c *oidcConnector) ClientID() string { return c.cfg.ClientID }

func (c *oidcConnector) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	return c.cfg.AuthCodeURL(state, opts...)
}

func (c *oidcConnector) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*Identity, error) {
	token, err := c.cfg.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("oauth: exchange code: %w", err)
	}

	raw, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("oauth: no id_token in token response")
	}
	idToken, err := c.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("oauth: verify id token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("oauth: parse claims: %w", err)
	}
	return &Identity{Subject: idToken.Subject, Email: claims.Email, Name: claims.Name}, nil
}
