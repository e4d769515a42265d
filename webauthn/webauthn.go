package webauthn

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/getkayan/shogun/internal/logger"
	"github.com/getkayan/shogun/signer"
)

const (
	DefaultTimeout   = 60 * time.Second
	DefaultRetries   = 3
	DefaultBackoff   = time.Second
	DefaultRPName    = "Shogun"
	algECDHESHKDF256 = webauthncose.COSEAlgorithmIdentifier(-25)
)

var (
	ErrUnsupported     = fmt.Errorf("%w: webauthn is not supported", signer.ErrUnavailable)
	ErrInvalidUsername = errors.New("webauthn: username must be 3-64 characters of letters, digits, '_', '-', '.' or '@'")
	ErrNotRegistered   = fmt.Errorf("%w: no webauthn credential registered", signer.ErrCredentialNotFound)
	ErrCloned          = errors.New("webauthn: sign count did not increase, authenticator may be cloned")
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.@-]{3,64}$`)

type Option func(*Webauthn)

func WithRelyingParty(id, name string) Option {
	return func(w *Webauthn) {
		w.rpID = id
		if name != "" {
			w.rpName = name
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(w *Webauthn) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithRetry sets the attempt count and linear backoff step used when
// creating accounts.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(w *Webauthn) {
		if attempts > 0 {
			w.retries = attempts
		}
		w.backoff = backoff
	}
}

// Webauthn runs registration and authentication ceremonies against a
// Platform. Only one ceremony is in flight at a time; starting a new one
// aborts the previous.
type Webauthn struct {
	platform Platform
	rpID     string
	rpName   string
	timeout  time.Duration
	retries  int
	backoff  time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	current *ceremony
	regs    map[string]*Registration
}

type ceremony struct {
	cancel context.CancelFunc
}

func New(p Platform, opts ...Option) *Webauthn {
	w := &Webauthn{
		platform: p,
		rpID:     "localhost",
		rpName:   DefaultRPName,
		timeout:  DefaultTimeout,
		retries:  DefaultRetries,
		backoff:  DefaultBackoff,
		log:      logger.Named("webauthn"),
		regs:     make(map[string]*Registration),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Webauthn) IsSupported() bool { return w.platform != nil && w.platform.IsSupported() }

func (w *Webauthn) RPID() string { return w.rpID }

func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// CreationOptions builds the options for registering username.
func (w *Webauthn) CreationOptions(username string, userID []byte) (*protocol.PublicKeyCredentialCreationOptions, error) {
	challenge, err := protocol.CreateChallenge()
	if err != nil {
		return nil, err
	}

	return &protocol.PublicKeyCredentialCreationOptions{
		RelyingParty: protocol.RelyingPartyEntity{
			CredentialEntity: protocol.CredentialEntity{Name: w.rpName},
			ID:               w.rpID,
		},
		User: protocol.UserEntity{
			CredentialEntity: protocol.CredentialEntity{Name: username},
			DisplayName:      username,
			ID:               protocol.URLEncodedBase64(userID),
		},
		Challenge: challenge,
		Parameters: []protocol.CredentialParameter{
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
			{Type: protocol.PublicKeyCredentialType, Algorithm: algECDHESHKDF256},
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgRS256},
		},
		Timeout: int(w.timeout.Milliseconds()),
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			ResidentKey:             protocol.ResidentKeyRequirementPreferred,
			UserVerification:        protocol.VerificationPreferred,
		},
		Attestation: protocol.PreferNoAttestation,
	}, nil
}

// CreateAccount registers a new credential for username, retrying failed
// attempts with a linear backoff.
func (w *Webauthn) CreateAccount(ctx context.Context, username string) (*Registration, error) {
	if !w.IsSupported() {
		return nil, ErrUnsupported
	}
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= w.retries; attempt++ {
		reg, err := w.createOnce(ctx, username)
		if err == nil {
			return reg, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		w.log.Warn("credential creation failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt < w.retries {
			select {
			case <-time.After(w.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("webauthn: create credential after %d attempts: %w", w.retries, lastErr)
}

func (w *Webauthn) createOnce(ctx context.Context, username string) (*Registration, error) {
	uid := uuid.New()
	opts, err := w.CreationOptions(username, uid[:])
	if err != nil {
		return nil, err
	}

	ctx, done := w.begin(ctx)
	defer done()

	att, err := w.platform.Create(ctx, opts)
	if err != nil {
		return nil, err
	}
	if _, err := webauthncose.ParsePublicKey(att.PublicKey); err != nil {
		return nil, fmt.Errorf("webauthn: credential public key: %w", err)
	}

	reg := &Registration{
		Username:     username,
		UserID:       uid[:],
		CredentialID: att.CredentialID,
		PublicKey:    att.PublicKey,
		CreatedAt:    time.Now().UTC(),
	}
	w.Import(reg)
	w.log.Info("credential registered", zap.String("username", username))
	return reg, nil
}

// Import makes a registration known, for example one restored from another
// device's export.
func (w *Webauthn) Import(reg *Registration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := *reg
	w.regs[strings.ToLower(reg.Username)] = &cp
}

func (w *Webauthn) Registration(username string) (*Registration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	reg, ok := w.regs[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, false
	}
	cp := *reg
	return &cp, true
}

// Authenticate runs an assertion over challenge with the credential
// registered for username and verifies it.
func (w *Webauthn) Authenticate(ctx context.Context, username string, challenge []byte) (*Assertion, *Registration, error) {
	if !w.IsSupported() {
		return nil, nil, ErrUnsupported
	}
	reg, ok := w.Registration(username)
	if !ok {
		return nil, nil, ErrNotRegistered
	}

	opts := &protocol.PublicKeyCredentialRequestOptions{
		Challenge:      protocol.URLEncodedBase64(challenge),
		Timeout:        int(w.timeout.Milliseconds()),
		RelyingPartyID: w.rpID,
		AllowedCredentials: []protocol.CredentialDescriptor{
			{Type: protocol.PublicKeyCredentialType, CredentialID: reg.CredentialID},
		},
		UserVerification: protocol.VerificationPreferred,
	}

	actx, done := w.begin(ctx)
	a, err := w.platform.Get(actx, opts)
	done()
	if err != nil {
		return nil, nil, err
	}

	count, err := VerifyAssertion(a, reg.PublicKey, challenge, w.rpID)
	if err != nil {
		return nil, nil, err
	}
	if count != 0 || reg.SignCount != 0 {
		if count <= reg.SignCount {
			return nil, nil, ErrCloned
		}
	}

	w.mu.Lock()
	if r, ok := w.regs[strings.ToLower(reg.Username)]; ok {
		r.SignCount = count
	}
	w.mu.Unlock()
	reg.SignCount = count
	return a, reg, nil
}

// AbortAuthentication cancels the ceremony in flight, if any.
func (w *Webauthn) AbortAuthentication() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current != nil {
		w.current.cancel()
		w.current = nil
	}
}

// begin aborts any running ceremony and starts a new one bounded by the
// configured timeout.
func (w *Webauthn) begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	c := &ceremony{cancel: cancel}

	w.mu.Lock()
	if w.current != nil {
		w.current.cancel()
	}
	w.current = c
	w.mu.Unlock()

	return ctx, func() {
		cancel()
		w.mu.Lock()
		if w.current == c {
			w.current = nil
		}
		w.mu.Unlock()
	}
}
