// Package signer turns an external proof of identity into a deterministic
// graph identity.
//
// A Signer is generic over a Method, which knows how to validate identifiers
// and obtain proofs for one authentication mechanism (a wallet signature, a
// platform assertion, an ID token). The Signer derives a stable password from
// the proof, stores the resulting credential and derives the P-256 pair that
// controls the graph user. Because the password only depends on the proof and
// never on time, the same external identity always lands on the same user.
package signer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/getkayan/shogun/credential"
	"github.com/getkayan/shogun/graph"
	"github.com/getkayan/shogun/internal/logger"
	"github.com/getkayan/shogun/keys"
	"github.com/getkayan/shogun/sea"
	"github.com/getkayan/shogun/telemetry"
)

var (
	ErrCredentialNotFound     = errors.New("signer: credential not found")
	ErrInvalidIdentifier      = errors.New("signer: invalid identifier")
	ErrSignatureRequestFailed = errors.New("signer: signature request failed")
	ErrSignatureVerification  = errors.New("signer: signature verification failed")
	// ErrUnavailable is wrapped by methods whose wallet or platform is missing.
	ErrUnavailable = errors.New("signer: method unavailable")
)

// Proof is the normalized result of asking a method to prove control of an
// external identity.
type Proof struct {
	ExternalID string
	Signature  string
	Message    string
	// PublicKey is method specific: a Nostr x-only key, an encoded COSE key.
	PublicKey string
}

// Method adapts one authentication mechanism to the Signer.
type Method interface {
	Name() string
	// Normalize validates id and returns its canonical display form.
	Normalize(id string) (string, error)
	Username(id string) string
	// Prove obtains a proof that the caller controls id, over message.
	Prove(ctx context.Context, id, message string) (*Proof, error)
	// Password derives the stable derivation secret from a proof.
	Password(p *Proof) (string, error)
	// Reverify obtains a fresh proof over payload for a stored credential and
	// checks it against the credential. It returns the fresh signature.
	Reverify(ctx context.Context, cred *credential.SigningCredential, payload string) (string, error)
}

// Authenticator re-proves control of an identity before data is signed.
type Authenticator func(ctx context.Context, data any) (string, error)

// Consistency reports whether a credential still derives the expected user.
type Consistency struct {
	Consistent      bool
	ActualUserPub   string
	ExpectedUserPub string
}

// OneshotSetup is everything a caller needs to sign repeatedly as one
// external identity.
type OneshotSetup struct {
	Credential    *credential.SigningCredential
	Authenticator Authenticator
	Pair          keys.Pair
	UserPub       string
	Username      string
}

type Signer struct {
	method  Method
	store   credential.Store
	message string
	tel     *telemetry.Provider
	log     *zap.Logger
}

type Option func(*Signer)

// WithStore replaces the default in-memory credential store.
func WithStore(s credential.Store) Option {
	return func(sg *Signer) { sg.store = s }
}

// WithMessage overrides the message proofs are requested over.
func WithMessage(m string) Option {
	return func(sg *Signer) { sg.message = m }
}

func WithTelemetry(p *telemetry.Provider) Option {
	return func(sg *Signer) { sg.tel = p }
}

// DefaultMessage is the canonical signed message.
const DefaultMessage = "I Love Shogun!"

func New(m Method, opts ...Option) *Signer {
	s := &Signer{
		method:  m,
		store:   credential.NewMemoryStore(),
		message: DefaultMessage,
		tel:     telemetry.Disabled(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.Named("signer").With(zap.String("method", m.Name()))
	return s
}

func (s *Signer) Method() Method { return s.method }

func (s *Signer) Message() string { return s.message }

// CreateSigningCredential proves control of id and stores the resulting
// credential. Calling it again for the same identity overwrites the entry
// with an equivalent one.
func (s *Signer) CreateSigningCredential(ctx context.Context, id string) (cred *credential.SigningCredential, err error) {
	ctx, span := s.tel.SpanCredential(ctx, "create", s.method.Name(), id)
	defer func() { telemetry.EndSpan(span, err) }()

	normalized, err := s.method.Normalize(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIdentifier, err)
	}

	proof, err := s.method.Prove(ctx, normalized, s.message)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSignatureRequestFailed, err)
	}

	password, err := s.method.Password(proof)
	if err != nil {
		return nil, fmt.Errorf("signer: derive password: %w", err)
	}

	cred = &credential.SigningCredential{
		Method:     s.method.Name(),
		ExternalID: proof.ExternalID,
		Username:   s.method.Username(proof.ExternalID),
		Password:   password,
		Signature:  proof.Signature,
		Message:    proof.Message,
		PublicKey:  proof.PublicKey,
		CreatedAt:  time.Now().UTC(),
	}

	if prev, err := s.store.Get(ctx, cred.ExternalID); err == nil && prev.Password == cred.Password {
		cred.UserPub = prev.UserPub
	}

	if err := s.store.Put(ctx, cred); err != nil {
		return nil, fmt.Errorf("signer: store credential: %w", err)
	}

	s.log.Info("signing credential created", zap.String("username", cred.Username))
	return cred, nil
}

// CreateAuthenticator returns a callback that re-proves control of id over
// the JSON encoding of the data it is given.
func (s *Signer) CreateAuthenticator(ctx context.Context, id string) (Authenticator, error) {
	if _, err := s.lookup(ctx, id); err != nil {
		return nil, err
	}

	return func(ctx context.Context, data any) (string, error) {
		cred, err := s.lookup(ctx, id)
		if err != nil {
			return "", err
		}

		payload, err := json.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("signer: encode payload: %w", err)
		}

		sig, err := s.method.Reverify(ctx, cred, string(payload))
		if err != nil {
			if errors.Is(err, ErrSignatureVerification) || errors.Is(err, ErrUnavailable) {
				return "", err
			}
			return "", fmt.Errorf("%w: %w", ErrSignatureRequestFailed, err)
		}
		return sig, nil
	}, nil
}

// CreateDerivedKeyPair derives the P-256 pair for a stored credential. With no
// extra it matches the pair the password login path derives for the same
// credential.
func (s *Signer) CreateDerivedKeyPair(ctx context.Context, id string, extra ...string) (pair keys.Pair, err error) {
	cred, err := s.lookup(ctx, id)
	if err != nil {
		return keys.Pair{}, err
	}
	return s.derive(ctx, cred.Password, extra)
}

func (s *Signer) derive(ctx context.Context, password string, extra []string) (keys.Pair, error) {
	ctx, span := s.tel.SpanDerive(ctx, s.method.Name())
	start := time.Now()

	b, err := keys.Derive(ctx, keys.Password(password), extra, keys.Options{P256: true})

	s.tel.RecordDeriveDuration(ctx, s.method.Name(), time.Since(start))
	telemetry.EndSpan(span, err)

	if err != nil {
		return keys.Pair{}, fmt.Errorf("signer: derive key pair: %w", err)
	}
	return b.Pair(), nil
}

// CreateGunUser creates the graph user for id, or logs into it when it
// already exists, and returns its pub. Repeated calls converge on the same pub.
func (s *Signer) CreateGunUser(ctx context.Context, id string, db graph.Database) (pub string, err error) {
	ctx, span := s.tel.SpanCredential(ctx, "create_user", s.method.Name(), id)
	defer func() { telemetry.EndSpan(span, err) }()

	cred, err := s.lookup(ctx, id)
	if err != nil {
		return "", err
	}
	pair, err := s.derive(ctx, cred.Password, nil)
	if err != nil {
		return "", err
	}

	user := db.User()
	if _, createErr := user.Create(ctx, cred.Username, pair); createErr != nil && !errors.Is(createErr, graph.ErrUserExists) {
		s.log.Debug("create failed, falling back to auth", zap.Error(createErr))
	}

	pub, err = user.Auth(ctx, pair)
	if err != nil {
		return "", fmt.Errorf("signer: auth graph user: %w", err)
	}

	if err := s.RecordUserPub(ctx, id, pub); err != nil {
		return "", err
	}
	return pub, nil
}

// RecordUserPub stores the graph pub a credential logged in as.
func (s *Signer) RecordUserPub(ctx context.Context, id, pub string) error {
	if err := s.store.SetUserPub(ctx, s.canonical(id), pub); err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrCredentialNotFound, id)
		}
		return fmt.Errorf("signer: record user pub: %w", err)
	}
	return nil
}

// GetGunUserPub returns the graph pub recorded for id, or "" if no user has
// been created yet.
func (s *Signer) GetGunUserPub(ctx context.Context, id string) (string, error) {
	cred, err := s.lookup(ctx, id)
	if err != nil {
		return "", err
	}
	return cred.UserPub, nil
}

// SignWithDerivedKeys re-proves control of id and signs the JSON encoding of
// data with the derived pair, returning a SEA signature.
func (s *Signer) SignWithDerivedKeys(ctx context.Context, data any, id string, extra ...string) (string, error) {
	auth, err := s.CreateAuthenticator(ctx, id)
	if err != nil {
		return "", err
	}
	if _, err := auth(ctx, data); err != nil {
		return "", err
	}

	pair, err := s.CreateDerivedKeyPair(ctx, id, extra...)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("signer: encode payload: %w", err)
	}
	return sea.Sign(string(payload), pair)
}

// VerifyConsistency re-derives the pair for id and compares its pub with
// expected. An empty expected falls back to the recorded user pub; with
// neither, the result is trivially consistent.
func (s *Signer) VerifyConsistency(ctx context.Context, id, expected string) (*Consistency, error) {
	cred, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	pair, err := s.derive(ctx, cred.Password, nil)
	if err != nil {
		return nil, err
	}

	if expected == "" {
		expected = cred.UserPub
	}
	return &Consistency{
		Consistent:      expected == "" || expected == pair.Pub,
		ActualUserPub:   pair.Pub,
		ExpectedUserPub: expected,
	}, nil
}

// SetupConsistentOneshotSigning creates the credential, authenticator and pair
// for id in one step. When db is non-nil the graph user is created too.
func (s *Signer) SetupConsistentOneshotSigning(ctx context.Context, id string, db graph.Database) (*OneshotSetup, error) {
	cred, err := s.CreateSigningCredential(ctx, id)
	if err != nil {
		return nil, err
	}
	auth, err := s.CreateAuthenticator(ctx, cred.ExternalID)
	if err != nil {
		return nil, err
	}
	pair, err := s.CreateDerivedKeyPair(ctx, cred.ExternalID)
	if err != nil {
		return nil, err
	}

	setup := &OneshotSetup{
		Credential:    cred,
		Authenticator: auth,
		Pair:          pair,
		Username:      cred.Username,
	}

	if db != nil {
		pub, err := s.CreateGunUser(ctx, cred.ExternalID, db)
		if err != nil {
			return nil, err
		}
		setup.UserPub = pub
		setup.Credential.UserPub = pub
	}
	return setup, nil
}

func (s *Signer) GetCredential(ctx context.Context, id string) (*credential.SigningCredential, error) {
	return s.lookup(ctx, id)
}

func (s *Signer) ListCredentials(ctx context.Context) ([]*credential.SigningCredential, error) {
	return s.store.List(ctx)
}

// RemoveCredential forgets id. Graph users created for it are untouched.
func (s *Signer) RemoveCredential(ctx context.Context, id string) (bool, error) {
	return s.store.Delete(ctx, s.canonical(id))
}

// canonical maps id onto the form credentials are stored under. Identifiers
// the method rejects are used as given.
func (s *Signer) canonical(id string) string {
	if n, err := s.method.Normalize(id); err == nil {
		return n
	}
	return id
}

func (s *Signer) lookup(ctx context.Context, id string) (*credential.SigningCredential, error) {
	cred, err := s.store.Get(ctx, s.canonical(id))
	if errors.Is(err, credential.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCredentialNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("signer: load credential: %w", err)
	}
	return cred, nil
}
