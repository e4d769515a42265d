// Package shogun wires the auth manager, its stores and the bundled plugins
// from a config.Config.
//
//	cfg, _ := config.LoadConfig()
//	stack, err := shogun.NewDefaultManager(ctx, cfg)
//	if err != nil { ... }
//	defer stack.Close(ctx)
//
//	plugins, err := stack.NewDefaultPlugins(ctx, shogun.Environment{Nostr: ext})
//	for _, p := range plugins {
//	    stack.Manager.Register(p)
//	}
package shogun

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/getkayan/shogun/config"
	"github.com/getkayan/shogun/core"
	"github.com/getkayan/shogun/credential"
	"github.com/getkayan/shogun/graph"
	"github.com/getkayan/shogun/graph/sqlgraph"
	"github.com/getkayan/shogun/internal/logger"
	"github.com/getkayan/shogun/nostr"
	"github.com/getkayan/shogun/oauth"
	"github.com/getkayan/shogun/signer"
	"github.com/getkayan/shogun/telemetry"
	"github.com/getkayan/shogun/web3"
	"github.com/getkayan/shogun/webauthn"
)

// Stack is a manager together with the stores and telemetry backing it.
type Stack struct {
	Config    *config.Config
	Manager   *core.Manager
	Graph     *graph.DB
	Telemetry *telemetry.Provider

	redis   *redis.Client
	closers []func() error
}

// Environment supplies the wallets and authenticators of the host. Nil
// fields leave the matching plugin unavailable.
type Environment struct {
	Ethereum web3.Provider
	Nostr    nostr.Extension
	Platform webauthn.Platform
}

// NewDefaultManager builds a manager over the graph store, credential store
// and telemetry selected by cfg.
func NewDefaultManager(ctx context.Context, cfg *config.Config) (*Stack, error) {
	s := &Stack{Config: cfg}

	tel := telemetry.Disabled()
	if cfg.TelemetryEnabled {
		tcfg := telemetry.DefaultConfig()
		tcfg.OTLPEndpoint = cfg.OTLPEndpoint
		p, err := telemetry.NewProvider(tcfg)
		if err != nil {
			return nil, fmt.Errorf("shogun: telemetry: %w", err)
		}
		tel = p
	}
	s.Telemetry = tel

	db, err := s.openGraph()
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	s.Graph = db

	if cfg.CredentialStore == "redis" {
		if cfg.RedisAddr == "" {
			s.Close(ctx)
			return nil, errors.New("shogun: CREDENTIAL_STORE=redis requires REDIS_ADDR")
		}
		s.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		s.closers = append(s.closers, s.redis.Close)
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("shogun: redis: %w", err)
		}
	}

	s.Manager = core.NewManager(db, core.WithTelemetry(tel))
	logger.Named("shogun").Info("manager ready",
		zap.String("graph", cfg.GraphDBType),
		zap.String("credentials", cfg.CredentialStore),
	)
	return s, nil
}

func (s *Stack) openGraph() (*graph.DB, error) {
	switch s.Config.GraphDBType {
	case "", "memory":
		return graph.NewMemory(), nil
	}

	dir, err := sqlgraph.Open(s.Config.GraphDBType, s.Config.GraphDSN)
	if err != nil {
		return nil, fmt.Errorf("shogun: graph: %w", err)
	}
	s.closers = append(s.closers, dir.Close)
	return graph.New(dir), nil
}

// CredentialStore returns the credential store for one method. Methods never
// share a store so their identifiers cannot collide.
func (s *Stack) CredentialStore(method string) credential.Store {
	if s.redis != nil {
		return credential.NewRedisStore(s.redis, s.Config.RedisPrefix+method+":")
	}
	return credential.NewMemoryStore()
}

// SignerOptions returns the signer configuration for method.
func (s *Stack) SignerOptions(method string) []signer.Option {
	return []signer.Option{
		signer.WithStore(s.CredentialStore(method)),
		signer.WithMessage(s.Config.Message()),
		signer.WithTelemetry(s.Telemetry),
	}
}

// NewDefaultPlugins builds the web3, nostr and webauthn plugins, plus oauth
// when providers are configured. They are not registered.
func (s *Stack) NewDefaultPlugins(ctx context.Context, env Environment) ([]core.Plugin, error) {
	cfg := s.Config

	wa := webauthn.New(env.Platform,
		webauthn.WithRelyingParty(cfg.WebAuthnRPID, cfg.WebAuthnRPName),
		webauthn.WithTimeout(cfg.WebAuthnTimeout),
	)

	plugins := []core.Plugin{
		web3.NewWithConnector(
			web3.NewConnector(env.Ethereum, web3.WithTimeout(cfg.WalletTimeout)),
			s.SignerOptions(web3.Name)...,
		),
		nostr.New(env.Nostr,
			nostr.WithSignerOptions(s.SignerOptions(nostr.Name)...),
			nostr.WithTimeout(cfg.WalletTimeout),
		),
		webauthn.NewPlugin(wa, s.SignerOptions(webauthn.Name)...),
	}

	if len(cfg.OAuthProviders) > 0 {
		p, err := oauth.NewFromConfig(ctx, cfg.OAuthProviders, s.SignerOptions(oauth.Name)...)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}

// RegisterDefaultPlugins builds the default plugins and registers them.
func (s *Stack) RegisterDefaultPlugins(ctx context.Context, env Environment) error {
	plugins, err := s.NewDefaultPlugins(ctx, env)
	if err != nil {
		return err
	}
	for _, p := range plugins {
		if err := s.Manager.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Close destroys plugins and releases stores and telemetry.
func (s *Stack) Close(ctx context.Context) error {
	if s.Manager != nil {
		s.Manager.Close()
	}

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil

	if s.Telemetry != nil {
		if err := s.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
