package keys

import (
	"context"
	"encoding/base64"
	"errors"
	"math/big"
	"regexp"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
)

var base64URL = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestDeriveScenario(t *testing.T) {
	ctx := context.Background()
	opts := Options{P256: true, Ethereum: true}

	b, err := Derive(ctx, Password("correct-password"), []string{"app-scope"}, opts)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}

	for name, v := range map[string]string{"priv": b.Priv, "epriv": b.Epriv} {
		if !base64URL.MatchString(v) {
			t.Errorf("%s is not base64url: %q", name, v)
		}
	}
	if !regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`).MatchString(b.Pub) {
		t.Errorf("pub is not x.y base64url: %q", b.Pub)
	}
	if b.Ethereum == nil {
		t.Fatal("expected ethereum key")
	}
	if !regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`).MatchString(b.Ethereum.Address) {
		t.Errorf("unexpected ethereum address %q", b.Ethereum.Address)
	}
	if b.Bitcoin != nil {
		t.Error("bitcoin key was not requested")
	}

	again, err := Derive(ctx, Password("correct-password"), []string{"app-scope"}, opts)
	if err != nil {
		t.Fatalf("second derive failed: %v", err)
	}
	if *again.Ethereum != *b.Ethereum || again.Pair() != b.Pair() {
		t.Error("derivation is not deterministic")
	}
}

func TestDeriveKnownAnswer(t *testing.T) {
	b, err := Derive(context.Background(), Password("correct-password"), []string{"app-scope"},
		Options{P256: true, Bitcoin: true, Ethereum: true})
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}

	want := map[string]string{
		"pub":   "SK7wxLDGDfDl6Jj5UZ845TrRq-Ul2kanVfDvKwEhjag.I0KBpjQ__OMr0StzpI6_dxw0YTtjnDOZoNUzjqEyNww",
		"priv":  "UcvlDVNVTvI7sz1Fg6CTx0rvVlKZmljRgwAnHBrZyy0",
		"epub":  "ewCiPppXyteNH3gW7i7oVf4_W2_FFOO4Ygs9HHhib3c.F26XX3cjvLpkKKqsNw7fR0v2AUIccuqzTi__K29RyEU",
		"epriv": "4PZk0ZyoD0qSQgI84h6SEMToUWfsqJnwanx2DvKOVPY",

		"btc.priv": "52b727ad6aa0133dd2c6d0e90a1073182e158554361c2749fbab7120b0d931e0",
		"btc.pub":  "03bf845852d1b4528d2358a19f8dff23b6d4e8cce32daeaf2d17074378077de76a",
		"btc.addr": "18HfvrtNCCPrecAmcbgkWA4dxbqmEMgtpA",

		"eth.priv": "0xf290a80dc855599d7a9d15bdd7ccb15457eb82e924dca67315df82c937810f9c",
		"eth.pub":  "0x048d28cbbe104e37ee96987bfd408b60ce1d9f534773e7b3cc5cf49a85e4a9c3fc2cc49d8279880967479d842e9e89a5d738cbfe7dfc160ae7f93683acee3dfcc4",
		"eth.addr": "0xEe712078bC580393BD9423d145A1aE5d4592635c",
	}
	if b.Bitcoin == nil || b.Ethereum == nil {
		t.Fatal("expected both chain keys")
	}
	got := map[string]string{
		"pub":      b.Pub,
		"priv":     b.Priv,
		"epub":     b.Epub,
		"epriv":    b.Epriv,
		"btc.priv": b.Bitcoin.PrivateKey,
		"btc.pub":  b.Bitcoin.PublicKey,
		"btc.addr": b.Bitcoin.Address,
		"eth.priv": b.Ethereum.PrivateKey,
		"eth.pub":  b.Ethereum.PublicKey,
		"eth.addr": b.Ethereum.Address,
	}
	for k, w := range want {
		if got[k] != w {
			t.Errorf("%s: got %q, want %q", k, got[k], w)
		}
	}
}

func TestDeriveInsufficientEntropy(t *testing.T) {
	_, err := Derive(context.Background(), Password(""), nil, Options{})
	if !errors.Is(err, ErrInsufficientEntropy) {
		t.Fatalf("expected ErrInsufficientEntropy, got %v", err)
	}

	// 15 bytes combined: "short" (5) + "|"-joined extras "abcd|efghi" (10).
	_, err = Derive(context.Background(), Password("short"), []string{"abcd", "efghi"}, Options{})
	if !errors.Is(err, ErrInsufficientEntropy) {
		t.Fatalf("expected ErrInsufficientEntropy for 15 bytes, got %v", err)
	}
}

func TestDeriveNormalization(t *testing.T) {
	ctx := context.Background()

	composed, err := Derive(ctx, Password("  caf\u00e9-password "), []string{" scop\u00e9 "}, Options{})
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	decomposed, err := Derive(ctx, Password("cafe\u0301-password"), []string{"scope\u0301"}, Options{})
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}

	if composed.Pair() != decomposed.Pair() {
		t.Error("NFC-equivalent inputs derived different keys")
	}
}

func TestDeriveExtraChangesKeys(t *testing.T) {
	ctx := context.Background()

	a, err := Derive(ctx, Password("correct-password"), nil, Options{})
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	b, err := Derive(ctx, Password("correct-password"), []string{"other"}, Options{})
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}

	if a.Pub == b.Pub {
		t.Error("extra entropy did not change the derived key")
	}
	if a.Pub == a.Epub {
		t.Error("signing and encryption keys must be domain separated")
	}
}

func TestDeriveDefaultsToP256(t *testing.T) {
	b, err := Derive(context.Background(), Raw([]byte("0123456789abcdef")), nil, Options{})
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if !b.Pair().Valid() {
		t.Errorf("expected p256 pair by default, got %+v", b)
	}
}

func TestDeriveRandomSecret(t *testing.T) {
	ctx := context.Background()

	a, err := Derive(ctx, nil, nil, Options{})
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	b, err := Derive(ctx, nil, nil, Options{})
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if a.Pub == b.Pub {
		t.Error("random identities should differ")
	}
}

func TestDeriveCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Derive(ctx, Password("correct-password"), nil, Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDerivedKeysAreUsable(t *testing.T) {
	b, err := Derive(context.Background(), Password("correct-password"), nil, Options{P256: true, Bitcoin: true, Ethereum: true})
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}

	pub, err := PublicKeyOf(b.Priv)
	if err != nil {
		t.Fatalf("PublicKeyOf failed: %v", err)
	}
	if pub != b.Pub {
		t.Errorf("priv does not match pub: %s != %s", pub, b.Pub)
	}
	if _, err := ParsePublicKey(b.Epub); err != nil {
		t.Errorf("epub does not parse: %v", err)
	}

	priv, err := ParsePrivateKey(b.Priv)
	if err != nil {
		t.Fatalf("ParsePrivateKey failed: %v", err)
	}
	if priv.D.Sign() <= 0 || priv.D.Cmp(p256Order) >= 0 {
		t.Error("p256 scalar out of range")
	}

	if len(b.Bitcoin.Address) < 26 || b.Bitcoin.Address[0] != '1' {
		t.Errorf("unexpected bitcoin address %q", b.Bitcoin.Address)
	}
	if b.Bitcoin.PrivateKey == b.Ethereum.PrivateKey[2:] {
		t.Error("bitcoin and ethereum keys must be domain separated")
	}
}

func TestClampP256(t *testing.T) {
	orderMinusOne := new(big.Int).Sub(p256Order, big.NewInt(1))
	orderPlusFive := new(big.Int).Add(p256Order, big.NewInt(5))
	valid := big.NewInt(123456789)

	tests := []struct {
		name string
		in   *big.Int
		want *big.Int
	}{
		{"zero", big.NewInt(0), big.NewInt(1)},
		{"order", p256Order, orderMinusOne},
		{"above order", orderPlusFive, orderMinusOne},
		{"order minus one", orderMinusOne, orderMinusOne},
		{"in range", valid, valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := new(big.Int).SetBytes(clampP256(tt.in.FillBytes(make([]byte, 32))))
			if got.Cmp(tt.want) != 0 {
				t.Errorf("clampP256(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestClampSecp256k1(t *testing.T) {
	order := btcec.S256().Params().N
	orderMinusOne := new(big.Int).Sub(order, big.NewInt(1))
	allOnes := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	tests := []struct {
		name string
		in   *big.Int
		want *big.Int
	}{
		{"zero", big.NewInt(0), big.NewInt(1)},
		{"order", order, orderMinusOne},
		{"max", allOnes, orderMinusOne},
		{"in range", big.NewInt(42), big.NewInt(42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := new(big.Int).SetBytes(clampSecp256k1(tt.in.FillBytes(make([]byte, 32))))
			if got.Cmp(tt.want) != 0 {
				t.Errorf("clampSecp256k1(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	junk := base64.RawURLEncoding.EncodeToString(make([]byte, 32))
	for _, in := range []string{"", "nodot", junk + "." + junk, "!!.!!"} {
		if _, err := ParsePublicKey(in); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}
