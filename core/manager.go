package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/getkayan/shogun/authstate"
	"github.com/getkayan/shogun/autherr"
	"github.com/getkayan/shogun/event"
	"github.com/getkayan/shogun/graph"
	"github.com/getkayan/shogun/internal/logger"
	"github.com/getkayan/shogun/keys"
	"github.com/getkayan/shogun/telemetry"
)

var (
	ErrPluginExists   = errors.New("core: plugin already registered")
	ErrNotLoggedIn    = errors.New("core: no authenticated user")
	ErrMissingSecret  = errors.New("core: password or key pair required")
	ErrMissingAccount = errors.New("core: username required")
)

// WalletExtra is the derivation extra that separates wallet keys from the
// graph pair.
const WalletExtra = "wallet"

// Hook runs around Login. Pre-hooks receive a nil result.
type Hook func(ctx context.Context, r *AuthResult) error

// Manager is the reference Core.
type Manager struct {
	db     graph.Database
	state  *authstate.Machine
	events event.Emitter
	errs   *autherr.Handler
	tel    *telemetry.Provider
	log    *zap.Logger

	mu        sync.RWMutex
	method    string
	plugins   map[string]Plugin
	pair      *keys.Pair
	wallet    *keys.Bundle
	preHooks  []Hook
	postHooks []Hook
}

var _ Core = (*Manager)(nil)

type Option func(*Manager)

func WithTelemetry(p *telemetry.Provider) Option {
	return func(m *Manager) { m.tel = p }
}

func WithErrorHandler(h *autherr.Handler) Option {
	return func(m *Manager) { m.errs = h }
}

// WithStateMachine replaces the manager's own machine, e.g. to share one
// with a UI layer.
func WithStateMachine(s *authstate.Machine) Option {
	return func(m *Manager) { m.state = s }
}

func NewManager(db graph.Database, opts ...Option) *Manager {
	m := &Manager{
		db:      db,
		state:   authstate.New(),
		errs:    autherr.NewHandler(),
		tel:     telemetry.Disabled(),
		plugins: make(map[string]Plugin),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = logger.Named("core")

	m.state.OnTransition(func(from, to authstate.State, e authstate.Event) {
		m.tel.RecordTransition(context.Background(), string(from), string(to), string(e))
		m.log.Debug("auth state changed",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.String("event", string(e)),
		)
		m.events.Emit(event.StateChanged, to)
	})
	return m
}

func (m *Manager) AddPreHook(h Hook)  { m.preHooks = append(m.preHooks, h) }
func (m *Manager) AddPostHook(h Hook) { m.postHooks = append(m.postHooks, h) }

func (m *Manager) Graph() graph.Database { return m.db }

func (m *Manager) State() authstate.StateMachine { return m.state }

func (m *Manager) Errors() *autherr.Handler { return m.errs }

func (m *Manager) SetAuthMethod(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.method = method
}

func (m *Manager) AuthMethod() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.method
}

func (m *Manager) Emit(name string, data any) { m.events.Emit(name, data) }

// On subscribes to manager and plugin events.
func (m *Manager) On(name string, fn event.Handler) func() { return m.events.On(name, fn) }

// IsLoggedIn reports whether a user is authenticated.
func (m *Manager) IsLoggedIn() bool { return m.state.IsAuthenticated() }

// Pair returns the pair of the authenticated user.
func (m *Manager) Pair() (keys.Pair, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pair == nil {
		return keys.Pair{}, false
	}
	return *m.pair, true
}

func (m *Manager) Login(ctx context.Context, username, password string, pair *keys.Pair) (res AuthResult) {
	method := m.AuthMethod()
	start := time.Now()
	ctx, span := m.tel.SpanLogin(ctx, username, method)
	defer func() {
		m.tel.RecordLogin(ctx, method, res.Success)
		m.tel.RecordAuthDuration(ctx, method, time.Since(start))
		var err error
		if !res.Success {
			err = errors.New(res.Error)
		}
		telemetry.EndSpan(span, err)
	}()

	for _, h := range m.preHooks {
		if err := h(ctx, nil); err != nil {
			return m.fail(autherr.Authentication, autherr.CodeLoginFailed, "Login rejected", err)
		}
	}

	if _, err := m.state.Set(authstate.Authenticate); err != nil {
		return m.fail(autherr.Validation, autherr.CodeInvalidState, "Cannot log in while "+string(m.state.State()), err)
	}

	resolved, err := m.resolvePair(ctx, password, pair)
	if err != nil {
		m.state.Set(authstate.Fail)
		return m.fail(autherr.Validation, autherr.CodeLoginFailed, "Login failed", err)
	}

	pub, err := m.db.User().Auth(ctx, resolved)
	if err != nil {
		m.state.Set(authstate.Fail)
		return m.fail(autherr.Authentication, autherr.CodeLoginFailed, err.Error(), err)
	}

	m.mu.Lock()
	m.pair = &resolved
	m.wallet = nil
	m.mu.Unlock()

	if _, err := m.state.Set(authstate.Success); err != nil {
		return m.fail(autherr.Unknown, autherr.CodeInvalidState, "Login interrupted", err)
	}

	res = AuthResult{Success: true, UserPub: pub, Username: username, SEA: &resolved}
	for _, h := range m.postHooks {
		if err := h(ctx, &res); err != nil {
			m.logoutQuietly(ctx)
			return m.fail(autherr.Authentication, autherr.CodeLoginFailed, "Login rejected", err)
		}
	}

	m.log.Info("user logged in", zap.String("username", username), zap.String("method", method))
	return res
}

// SignUp creates the user, returns the machine to disconnected and logs in.
// If the user exists the result carries autherr.CodeUserExists.
func (m *Manager) SignUp(ctx context.Context, username, password, email string, pair *keys.Pair) (res SignUpResult) {
	method := m.AuthMethod()
	ctx, span := m.tel.SpanSignUp(ctx, username, method)
	defer func() {
		m.tel.RecordSignUp(ctx, method, res.Success)
		var err error
		if !res.Success {
			err = errors.New(res.Error)
		}
		telemetry.EndSpan(span, err)
	}()

	if username == "" {
		return SignUpResult{AuthResult: m.fail(autherr.Validation, autherr.CodeMissingIdentifier, "Username is required", ErrMissingAccount)}
	}

	if _, err := m.state.Set(authstate.Create); err != nil {
		return SignUpResult{AuthResult: m.fail(autherr.Validation, autherr.CodeInvalidState, "Cannot sign up while "+string(m.state.State()), err)}
	}

	resolved, err := m.resolvePair(ctx, password, pair)
	if err != nil {
		m.state.Set(authstate.Fail)
		return SignUpResult{AuthResult: m.fail(autherr.Validation, autherr.CodeSignUpFailed, "Sign up failed", err)}
	}

	if _, err := m.db.User().Create(ctx, username, resolved); err != nil {
		m.state.Set(authstate.Fail)
		if errors.Is(err, graph.ErrUserExists) {
			return SignUpResult{AuthResult: m.fail(autherr.Validation, autherr.CodeUserExists, err.Error(), err)}
		}
		return SignUpResult{AuthResult: m.fail(autherr.Authentication, autherr.CodeSignUpFailed, err.Error(), err)}
	}

	if _, err := m.state.Set(authstate.Success); err != nil {
		return SignUpResult{AuthResult: m.fail(autherr.Unknown, autherr.CodeInvalidState, "Sign up interrupted", err)}
	}

	m.log.Info("user created", zap.String("username", username), zap.String("method", method), zap.Bool("email", email != ""))

	login := m.Login(ctx, username, password, &resolved)
	return SignUpResult{AuthResult: login, IsNewUser: login.Success}
}

// Logout leaves the graph session. A failed leave returns the machine to
// authorized.
func (m *Manager) Logout(ctx context.Context) error {
	if _, err := m.state.Set(authstate.Disconnect); err != nil {
		return err
	}

	if err := m.db.User().Leave(ctx); err != nil {
		m.state.Set(authstate.Fail)
		return fmt.Errorf("core: leave: %w", err)
	}

	m.mu.Lock()
	m.pair = nil
	m.wallet = nil
	m.mu.Unlock()

	if _, err := m.state.Set(authstate.Success); err != nil {
		return err
	}
	m.events.Emit(event.AuthLogout, nil)
	return nil
}

func (m *Manager) logoutQuietly(ctx context.Context) {
	if err := m.Logout(ctx); err != nil {
		m.log.Warn("logout after rejected login failed", zap.Error(err))
	}
}

// InitWallet derives the Bitcoin and Ethereum keys of the authenticated user.
func (m *Manager) InitWallet(ctx context.Context) (*keys.Bundle, error) {
	if _, err := m.state.Set(authstate.WalletInitStart); err != nil {
		return nil, err
	}

	pair, ok := m.Pair()
	if !ok {
		m.state.Set(authstate.WalletInitFail)
		return nil, ErrNotLoggedIn
	}

	start := time.Now()
	b, err := keys.Derive(ctx, keys.Password(pair.Priv), []string{WalletExtra}, keys.Options{Bitcoin: true, Ethereum: true})
	m.tel.RecordDeriveDuration(ctx, "wallet", time.Since(start))
	if err != nil {
		m.state.Set(authstate.WalletInitFail)
		return nil, fmt.Errorf("core: derive wallet: %w", err)
	}

	m.mu.Lock()
	m.wallet = b
	m.mu.Unlock()

	if _, err := m.state.Set(authstate.WalletInitSuccess); err != nil {
		return nil, err
	}
	m.events.Emit(event.WalletReady, b)
	return b, nil
}

// Wallet returns the keys derived by InitWallet.
func (m *Manager) Wallet() (*keys.Bundle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.wallet, m.wallet != nil
}

// Register initializes p against the manager and makes it available by name.
func (m *Manager) Register(p Plugin) error {
	m.mu.Lock()
	if _, ok := m.plugins[p.Name()]; ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPluginExists, p.Name())
	}
	m.mu.Unlock()

	if err := p.Initialize(m); err != nil {
		return fmt.Errorf("core: initialize plugin %s: %w", p.Name(), err)
	}

	m.mu.Lock()
	m.plugins[p.Name()] = p
	m.mu.Unlock()

	m.events.Emit(event.PluginAdded, p.Name())
	return nil
}

func (m *Manager) Plugin(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plugins[name]
	return p, ok
}

// Plugins returns the registered plugins sorted by name.
func (m *Manager) Plugins() []Plugin {
	m.mu.RLock()
	out := make([]Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		out = append(out, p)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Unregister destroys and removes the named plugin.
func (m *Manager) Unregister(name string) bool {
	m.mu.Lock()
	p, ok := m.plugins[name]
	delete(m.plugins, name)
	m.mu.Unlock()

	if !ok {
		return false
	}
	p.Destroy()
	m.events.Emit(event.PluginRemoved, name)
	return true
}

// Close destroys every plugin.
func (m *Manager) Close() {
	for _, p := range m.Plugins() {
		m.Unregister(p.Name())
	}
}

func (m *Manager) resolvePair(ctx context.Context, password string, pair *keys.Pair) (keys.Pair, error) {
	if pair != nil && pair.Valid() {
		return *pair, nil
	}
	if password == "" {
		return keys.Pair{}, ErrMissingSecret
	}

	start := time.Now()
	b, err := keys.Derive(ctx, keys.Password(password), nil, keys.Options{P256: true})
	m.tel.RecordDeriveDuration(ctx, m.AuthMethod(), time.Since(start))
	if err != nil {
		return keys.Pair{}, err
	}
	return b.Pair(), nil
}

func (m *Manager) fail(cat autherr.Category, code autherr.Code, msg string, err error) AuthResult {
	ae := m.errs.Handle(cat, code, msg, err)
	m.events.Emit(event.AuthError, ae)
	return Failure(ae)
}
