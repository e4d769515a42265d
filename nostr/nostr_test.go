package nostr

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/getkayan/shogun/autherr"
	"github.com/getkayan/shogun/core"
	"github.com/getkayan/shogun/graph"
	"github.com/getkayan/shogun/signer"
)

const genesisAddress = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"

func newKeySigner(t *testing.T) *KeySigner {
	t.Helper()
	k, err := GenerateKeySigner()
	if err != nil {
		t.Fatal(err)
	}
	return k
}

// liar reports one key and signs with another.
type liar struct {
	claim  string
	signer *KeySigner
}

func (l *liar) GetPublicKey(context.Context) (string, error) { return l.claim, nil }

func (l *liar) SignEvent(ctx context.Context, ev *Event) (*Event, error) {
	return l.signer.SignEvent(ctx, ev)
}

func TestEventSignVerify(t *testing.T) {
	k := newKeySigner(t)
	ev, err := k.SignEvent(context.Background(), &Event{CreatedAt: 1700000000, Kind: KindTextNote, Content: "I Love Shogun!"})
	if err != nil {
		t.Fatal(err)
	}
	if ev.PubKey != k.PublicKey() || len(ev.ID) != 64 || len(ev.Sig) != 128 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if err := ev.Verify(); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	ev.Content = "tampered"
	if err := ev.Verify(); !errors.Is(err, ErrBadEvent) {
		t.Errorf("expected ErrBadEvent, got %v", err)
	}
}

func TestSerializeDoesNotEscapeHTML(t *testing.T) {
	ev := &Event{PubKey: "ab", CreatedAt: 1, Kind: 1, Content: "<a&b>"}
	raw, err := ev.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	want := `[0,"ab",1,1,[],"<a&b>"]`
	if string(raw) != want {
		t.Errorf("Serialize = %s, want %s", raw, want)
	}
}

func TestParseIdentifier(t *testing.T) {
	k := newKeySigner(t)
	npub, err := EncodeNpub(k.PublicKey())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		in   string
		want string
		kind IDKind
	}{
		{k.PublicKey(), k.PublicKey(), KindPubKey},
		{strings.ToUpper(k.PublicKey()), k.PublicKey(), KindPubKey},
		{npub, k.PublicKey(), KindPubKey},
		{" " + genesisAddress + " ", genesisAddress, KindBitcoin},
	}
	for _, tt := range tests {
		got, kind, err := ParseIdentifier(tt.in)
		if err != nil || got != tt.want || kind != tt.kind {
			t.Errorf("ParseIdentifier(%q) = %q, %d, %v", tt.in, got, kind, err)
		}
	}

	for _, bad := range []string{"", "hello", "npub1invalid", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNb"} {
		if _, _, err := ParseIdentifier(bad); err == nil {
			t.Errorf("ParseIdentifier(%q) should fail", bad)
		}
	}
}

func TestDeterministicSignature(t *testing.T) {
	got := DeterministicSignature("abc", "I Love Shogun!")
	want := "002d943d4ac0de972ba8de39535e0dee38dbef957c4eeeb63706ce3c618c6b585bfa65b7" + strings.Repeat("0", 56)
	if got != want {
		t.Errorf("DeterministicSignature = %s, want %s", got, want)
	}
	if DeterministicSignature("abd", "I Love Shogun!") == got {
		t.Error("different addresses should differ")
	}

	long := DeterministicSignature(strings.Repeat("x", 200), "I Love Shogun!")
	if len(long) != 128 {
		t.Errorf("expected 128 hex chars, got %d", len(long))
	}
}

func TestPluginFlow(t *testing.T) {
	ctx := context.Background()
	k := newKeySigner(t)
	m := core.NewManager(graph.NewMemory())
	p := New(k)
	if err := m.Register(p); err != nil {
		t.Fatal(err)
	}

	res := p.SignUp(ctx, "")
	if !res.Success || !res.IsNewUser {
		t.Fatalf("SignUp failed: %+v", res)
	}
	if res.Username != "nostr_"+k.PublicKey() {
		t.Errorf("unexpected username %q", res.Username)
	}

	cred, err := p.GetSigningCredential(ctx, k.PublicKey())
	if err != nil {
		t.Fatal(err)
	}
	if cred.PublicKey != k.PublicKey() || cred.Signature != DeterministicSignature(k.PublicKey(), signer.DefaultMessage) {
		t.Errorf("unexpected credential %+v", cred)
	}

	if err := m.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	npub, _ := EncodeNpub(k.PublicKey())
	login := p.Login(ctx, npub)
	if !login.Success || login.UserPub != res.UserPub {
		t.Errorf("npub login landed elsewhere: %+v", login)
	}
}

func TestImpostorRejected(t *testing.T) {
	victim := newKeySigner(t)
	m := core.NewManager(graph.NewMemory())
	p := New(&liar{claim: victim.PublicKey(), signer: newKeySigner(t)})
	_ = m.Register(p)

	res := p.SignUp(context.Background(), victim.PublicKey())
	if res.Success || res.Code != autherr.CodeSignatureVerificationFailed {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestNoExtension(t *testing.T) {
	m := core.NewManager(graph.NewMemory())
	p := New(nil)
	_ = m.Register(p)

	res := p.Login(context.Background(), genesisAddress)
	if res.Success || res.Code != autherr.CodeWalletUnavailable {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestDeterministicFallback(t *testing.T) {
	ctx := context.Background()
	m := core.NewManager(graph.NewMemory())
	p := New(nil, WithDeterministicFallback())
	_ = m.Register(p)

	res := p.SignUp(ctx, genesisAddress)
	if !res.Success {
		t.Fatalf("SignUp failed: %+v", res)
	}
	if res.Username != "nostr_"+strings.ToLower(genesisAddress) {
		t.Errorf("unexpected username %q", res.Username)
	}

	sig, err := p.SignWithDerivedKeys(ctx, "payload", genesisAddress)
	if err != nil || !strings.HasPrefix(sig, "SEA{") {
		t.Errorf("SignWithDerivedKeys = %q, %v", sig, err)
	}
}

// stalled never answers.
type stalled struct{}

func (stalled) GetPublicKey(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (stalled) SignEvent(ctx context.Context, _ *Event) (*Event, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestExtensionTimeout(t *testing.T) {
	m := core.NewManager(graph.NewMemory())
	p := New(stalled{}, WithTimeout(20*time.Millisecond))
	_ = m.Register(p)

	if _, err := p.Connect(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}

	done := make(chan core.AuthResult, 1)
	go func() { done <- p.Login(context.Background(), newKeySigner(t).PublicKey()) }()

	select {
	case res := <-done:
		if res.Success || res.Code != autherr.CodeSignatureRequestFailed {
			t.Errorf("unexpected result %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("login did not time out")
	}
}

func TestCredentialLookupByNpub(t *testing.T) {
	ctx := context.Background()
	key := newKeySigner(t)
	npub, err := EncodeNpub(key.PublicKey())
	if err != nil {
		t.Fatal(err)
	}

	m := core.NewManager(graph.NewMemory())
	p := New(key)
	_ = m.Register(p)

	res := p.SignUp(ctx, npub)
	if !res.Success {
		t.Fatalf("SignUp failed: %+v", res)
	}

	cred, err := p.GetSigningCredential(ctx, npub)
	if err != nil {
		t.Fatalf("GetSigningCredential(npub) failed: %v", err)
	}
	if cred.ExternalID != key.PublicKey() || cred.UserPub != res.UserPub {
		t.Errorf("unexpected credential %+v", cred)
	}
	if _, err := p.CreateDerivedKeyPair(ctx, npub); err != nil {
		t.Errorf("CreateDerivedKeyPair(npub) failed: %v", err)
	}
	if ok, err := p.RemoveSigningCredential(ctx, npub); err != nil || !ok {
		t.Errorf("RemoveSigningCredential(npub) = %v, %v", ok, err)
	}
}
