package signer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/getkayan/shogun/credential"
	"github.com/getkayan/shogun/graph"
	"github.com/getkayan/shogun/keys"
	"github.com/getkayan/shogun/sea"
)

// fakeMethod "signs" by concatenation. It lets tests control refusal and
// availability without a wallet.
type fakeMethod struct {
	refuse      bool
	unavailable bool
	proofs      int
}

func (m *fakeMethod) Name() string { return "fake" }

var errMissingPrefix = errors.New("identifiers start with id-")

func (m *fakeMethod) Normalize(id string) (string, error) {
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(strings.ToLower(id), "id-") {
		return "", errMissingPrefix
	}
	return id, nil
}

func (m *fakeMethod) Username(id string) string { return "fake_" + strings.ToLower(id) }

func (m *fakeMethod) sign(id, message string) (string, error) {
	m.proofs++
	if m.unavailable {
		return "", fmt.Errorf("%w: no wallet", ErrUnavailable)
	}
	if m.refuse {
		return "", errors.New("user rejected request")
	}
	return "sig(" + strings.ToLower(id) + "," + message + ")", nil
}

func (m *fakeMethod) Prove(_ context.Context, id, message string) (*Proof, error) {
	sig, err := m.sign(id, message)
	if err != nil {
		return nil, err
	}
	return &Proof{ExternalID: id, Signature: sig, Message: message}, nil
}

func (m *fakeMethod) Password(p *Proof) (string, error) {
	sum := sha256.Sum256([]byte(p.Signature))
	return hex.EncodeToString(sum[:]), nil
}

func (m *fakeMethod) Reverify(_ context.Context, cred *credential.SigningCredential, payload string) (string, error) {
	return m.sign(cred.ExternalID, payload)
}

func newTestSigner() (*Signer, *fakeMethod) {
	m := &fakeMethod{}
	return New(m), m
}

func TestCreateSigningCredential(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSigner()

	cred, err := s.CreateSigningCredential(ctx, "ID-Alice")
	if err != nil {
		t.Fatalf("CreateSigningCredential failed: %v", err)
	}
	if cred.Username != "fake_id-alice" {
		t.Errorf("unexpected username %q", cred.Username)
	}
	if cred.Message != DefaultMessage {
		t.Errorf("unexpected message %q", cred.Message)
	}

	again, err := s.CreateSigningCredential(ctx, "ID-Alice")
	if err != nil {
		t.Fatalf("second CreateSigningCredential failed: %v", err)
	}
	if again.Password != cred.Password {
		t.Error("password must be stable across calls")
	}

	got, err := s.GetCredential(ctx, "id-alice")
	if err != nil {
		t.Fatalf("case-insensitive lookup failed: %v", err)
	}
	if got.ExternalID != "ID-Alice" {
		t.Errorf("original case lost: %q", got.ExternalID)
	}
}

func TestCreateSigningCredentialErrors(t *testing.T) {
	ctx := context.Background()
	s, m := newTestSigner()

	_, err := s.CreateSigningCredential(ctx, "bogus")
	if !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("expected ErrInvalidIdentifier, got %v", err)
	}
	if !errors.Is(err, errMissingPrefix) {
		t.Errorf("normalize cause lost: %v", err)
	}

	m.refuse = true
	if _, err := s.CreateSigningCredential(ctx, "id-bob"); !errors.Is(err, ErrSignatureRequestFailed) {
		t.Errorf("expected ErrSignatureRequestFailed, got %v", err)
	}

	m.refuse, m.unavailable = false, true
	_, err = s.CreateSigningCredential(ctx, "id-bob")
	if !errors.Is(err, ErrUnavailable) || errors.Is(err, ErrSignatureRequestFailed) {
		t.Errorf("expected bare ErrUnavailable, got %v", err)
	}
}

func TestCredentialNotFound(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSigner()

	if _, err := s.CreateAuthenticator(ctx, "id-nobody"); !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("CreateAuthenticator: expected ErrCredentialNotFound, got %v", err)
	}
	if _, err := s.CreateDerivedKeyPair(ctx, "id-nobody"); !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("CreateDerivedKeyPair: expected ErrCredentialNotFound, got %v", err)
	}
	if _, err := s.GetGunUserPub(ctx, "id-nobody"); !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("GetGunUserPub: expected ErrCredentialNotFound, got %v", err)
	}
}

func TestDerivedPairMatchesPasswordPath(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSigner()

	cred, err := s.CreateSigningCredential(ctx, "id-carol")
	if err != nil {
		t.Fatalf("CreateSigningCredential failed: %v", err)
	}

	pair, err := s.CreateDerivedKeyPair(ctx, "ID-CAROL")
	if err != nil {
		t.Fatalf("CreateDerivedKeyPair failed: %v", err)
	}

	normal, err := keys.Derive(ctx, keys.Password(cred.Password), nil, keys.Options{})
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if pair != normal.Pair() {
		t.Error("oneshot pair differs from password-path pair")
	}

	scoped, err := s.CreateDerivedKeyPair(ctx, "id-carol", "scope")
	if err != nil {
		t.Fatalf("scoped derive failed: %v", err)
	}
	if scoped.Pub == pair.Pub {
		t.Error("extra entropy should change the pair")
	}
}

func TestCreateGunUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSigner()
	db := graph.NewMemory()

	if _, err := s.CreateSigningCredential(ctx, "id-dave"); err != nil {
		t.Fatalf("CreateSigningCredential failed: %v", err)
	}

	first, err := s.CreateGunUser(ctx, "id-dave", db)
	if err != nil {
		t.Fatalf("first CreateGunUser failed: %v", err)
	}
	second, err := s.CreateGunUser(ctx, "id-dave", db)
	if err != nil {
		t.Fatalf("second CreateGunUser failed: %v", err)
	}
	if first != second {
		t.Errorf("user pub changed: %s != %s", first, second)
	}

	pub, err := s.GetGunUserPub(ctx, "id-dave")
	if err != nil || pub != first {
		t.Errorf("GetGunUserPub = %q, %v", pub, err)
	}

	c, err := s.VerifyConsistency(ctx, "id-dave", "")
	if err != nil {
		t.Fatalf("VerifyConsistency failed: %v", err)
	}
	if !c.Consistent || c.ActualUserPub != first {
		t.Errorf("unexpected consistency %+v", c)
	}

	c, err = s.VerifyConsistency(ctx, "id-dave", "someone.else")
	if err != nil {
		t.Fatalf("VerifyConsistency failed: %v", err)
	}
	if c.Consistent {
		t.Error("mismatched expected pub must be inconsistent")
	}
}

func TestRecreatingCredentialKeepsUserPub(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSigner()
	db := graph.NewMemory()

	if _, err := s.CreateSigningCredential(ctx, "id-erin"); err != nil {
		t.Fatal(err)
	}
	pub, err := s.CreateGunUser(ctx, "id-erin", db)
	if err != nil {
		t.Fatal(err)
	}

	cred, err := s.CreateSigningCredential(ctx, "id-erin")
	if err != nil {
		t.Fatal(err)
	}
	if cred.UserPub != pub {
		t.Errorf("recreated credential lost user pub: %q", cred.UserPub)
	}
}

func TestSignWithDerivedKeys(t *testing.T) {
	ctx := context.Background()
	s, m := newTestSigner()

	if _, err := s.CreateSigningCredential(ctx, "id-frank"); err != nil {
		t.Fatal(err)
	}

	data := map[string]string{"action": "transfer"}
	signed, err := s.SignWithDerivedKeys(ctx, data, "id-frank")
	if err != nil {
		t.Fatalf("SignWithDerivedKeys failed: %v", err)
	}

	pair, _ := s.CreateDerivedKeyPair(ctx, "id-frank")
	msg, err := sea.Verify(signed, pair.Pub)
	if err != nil {
		t.Fatalf("signature does not verify: %v", err)
	}
	if msg != `{"action":"transfer"}` {
		t.Errorf("unexpected signed message %q", msg)
	}

	m.refuse = true
	if _, err := s.SignWithDerivedKeys(ctx, data, "id-frank"); !errors.Is(err, ErrSignatureRequestFailed) {
		t.Errorf("expected reverification failure, got %v", err)
	}
}

func TestSetupConsistentOneshotSigning(t *testing.T) {
	ctx := context.Background()
	s, m := newTestSigner()
	db := graph.NewMemory()

	setup, err := s.SetupConsistentOneshotSigning(ctx, "id-grace", db)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if setup.UserPub == "" || setup.UserPub != setup.Pair.Pub {
		t.Errorf("user pub %q does not match pair %q", setup.UserPub, setup.Pair.Pub)
	}
	if setup.Username != "fake_id-grace" {
		t.Errorf("unexpected username %q", setup.Username)
	}

	before := m.proofs
	sig, err := setup.Authenticator(ctx, []int{1, 2})
	if err != nil {
		t.Fatalf("authenticator failed: %v", err)
	}
	if m.proofs != before+1 || !strings.Contains(sig, "[1,2]") {
		t.Errorf("authenticator should request a fresh proof over the payload, got %q", sig)
	}

	noDB, err := s.SetupConsistentOneshotSigning(ctx, "id-heidi", nil)
	if err != nil {
		t.Fatalf("setup without db failed: %v", err)
	}
	if noDB.UserPub != "" {
		t.Error("no graph user should be created without a database")
	}
}

func TestListAndRemove(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSigner()

	for _, id := range []string{"id-1", "id-2"} {
		if _, err := s.CreateSigningCredential(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	list, err := s.ListCredentials(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListCredentials = %d, %v", len(list), err)
	}

	removed, err := s.RemoveCredential(ctx, "ID-1")
	if err != nil || !removed {
		t.Fatalf("RemoveCredential = %v, %v", removed, err)
	}
	if _, err := s.GetCredential(ctx, "id-1"); !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestWithMessage(t *testing.T) {
	s := New(&fakeMethod{}, WithMessage("custom"), WithStore(credential.NewMemoryStore()))
	cred, err := s.CreateSigningCredential(context.Background(), "id-ivan")
	if err != nil {
		t.Fatal(err)
	}
	if cred.Message != "custom" || s.Message() != "custom" {
		t.Errorf("message override ignored: %q", cred.Message)
	}
}
