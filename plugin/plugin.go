// Package plugin holds the lifecycle and login workflow shared by every
// authentication plugin.
//
// Concrete plugins embed Base for initialize/destroy bookkeeping and call
// LoginWith/SignUpWith to run the common workflow over their Signer. Public
// plugin methods never return errors; failures come back as tagged results
// built by Fail.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/getkayan/shogun/autherr"
	"github.com/getkayan/shogun/core"
	"github.com/getkayan/shogun/event"
	"github.com/getkayan/shogun/internal/logger"
	"github.com/getkayan/shogun/signer"
)

var ErrNotInitialized = errors.New("plugin: not initialized")

// AuthPlugin is a plugin that can log users in.
type AuthPlugin interface {
	core.Plugin
	// IsAvailable reports whether the wallet or platform the plugin needs is
	// present. Absence is a normal condition.
	IsAvailable(ctx context.Context) bool
	Login(ctx context.Context, identifier string) core.AuthResult
	SignUp(ctx context.Context, identifier string) core.SignUpResult
}

// Base is the lifecycle state embedded by plugins. Use it by pointer.
type Base struct {
	name   string
	events event.Emitter
	errs   *autherr.Handler
	log    *zap.Logger

	mu     sync.RWMutex
	core   core.Core
	signer *signer.Signer
}

func NewBase(name string) Base {
	return Base{
		name: name,
		errs: autherr.NewHandler(),
		log:  logger.Named("plugin").With(zap.String("plugin", name)),
	}
}

func (b *Base) Name() string { return b.name }

// Attach records c as the host and s as the plugin's signer. From then on
// failures are recorded in the host's error log. Concrete Initialize methods
// call it after building their collaborators.
func (b *Base) Attach(c core.Core, s *signer.Signer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.core = c
	b.signer = s
	if h := c.Errors(); h != nil {
		b.errs = h
	}
}

// Detach emits "destroyed" and forgets the host. It is safe to call more
// than once; only the first call emits.
func (b *Base) Detach() {
	b.mu.Lock()
	was := b.core
	b.core = nil
	b.signer = nil
	b.mu.Unlock()

	if was != nil {
		b.events.Emit(event.Destroyed, b.name)
	}
}

// AssertInitialized fails with "Plugin <name> not initialized" until Attach
// is called.
func (b *Base) AssertInitialized() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.core == nil {
		return autherr.New(autherr.Validation, autherr.CodePluginNotInitialized,
			fmt.Sprintf("Plugin %s not initialized", b.name), ErrNotInitialized)
	}
	return nil
}

// Core returns the host or the AssertInitialized error.
func (b *Base) Core() (core.Core, error) {
	if err := b.AssertInitialized(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.core, nil
}

// Signer returns the plugin's signer or the AssertInitialized error.
func (b *Base) Signer() (*signer.Signer, error) {
	if err := b.AssertInitialized(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.signer, nil
}

// On subscribes to plugin-local events.
func (b *Base) On(name string, fn event.Handler) func() { return b.events.On(name, fn) }

// Emit notifies plugin-local listeners and, when attached, the host.
func (b *Base) Emit(name string, data any) {
	b.events.Emit(name, data)

	b.mu.RLock()
	c := b.core
	b.mu.RUnlock()
	if c != nil {
		c.Emit(name, data)
	}
}

// Errors is the diagnostic error log failures are recorded in: the host's
// once attached, a private one before.
func (b *Base) Errors() *autherr.Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.errs
}

func (b *Base) Logger() *zap.Logger { return b.log }

// Fail classifies err, records it, emits auth:error and returns a failed
// AuthResult.
func (b *Base) Fail(err error) core.AuthResult {
	ae := Classify(err)
	b.Errors().Record(ae)
	b.log.Debug("plugin operation failed", zap.String("code", string(ae.Code)), zap.Error(err))
	b.Emit(event.AuthError, ae)
	return core.Failure(ae)
}

// SignUpFail is Fail for sign-ups.
func (b *Base) SignUpFail(err error) core.SignUpResult {
	return core.SignUpResult{AuthResult: b.Fail(err)}
}
