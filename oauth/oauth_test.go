package oauth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/getkayan/shogun/autherr"
	"github.com/getkayan/shogun/core"
	"github.com/getkayan/shogun/graph"
)

const clientID = "shogun-client"

// newProvider starts a token endpoint issuing RS256 ID tokens for subject.
func newProvider(t *testing.T, subject string) (Connector, *int32) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	var missingVerifier int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		if r.Form.Get("code_verifier") == "" {
			atomic.AddInt32(&missingVerifier, 1)
		}
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}

		now := time.Now()
		idToken, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"iss":   srv.URL,
			"sub":   subject,
			"aud":   clientID,
			"iat":   now.Unix(),
			"exp":   now.Add(time.Hour).Unix(),
			"email": "user@example.com",
		}).SignedString(key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
	}))
	t.Cleanup(srv.Close)

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
		RedirectURL:  "http://localhost/callback",
		Scopes:       []string{oidc.ScopeOpenID},
	}
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	return newOIDCConnector(cfg, oidc.NewVerifier(srv.URL, keySet, &oidc.Config{ClientID: clientID})), &missingVerifier
}

func newPlugin(t *testing.T, subject string) (*core.Manager, *Plugin, *int32) {
	t.Helper()
	conn, missing := newProvider(t, subject)
	m := core.NewManager(graph.NewMemory())
	p := New(map[string]Connector{"test": conn})
	if err := m.Register(p); err != nil {
		t.Fatal(err)
	}
	return m, p, missing
}

func initiate(t *testing.T, p *Plugin) string {
	t.Helper()
	raw, err := p.InitiateOAuth("test")
	if err != nil {
		t.Fatalf("InitiateOAuth failed: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("code_challenge") == "" || q.Get("code_challenge_method") != "S256" {
		t.Errorf("missing PKCE challenge in %s", raw)
	}
	return q.Get("state")
}

func TestCallbackFlow(t *testing.T) {
	ctx := context.Background()
	m, p, missing := newPlugin(t, "user-123")

	res := p.HandleCallback(ctx, "test", "good-code", initiate(t, p))
	if !res.Success || !res.IsNewUser {
		t.Fatalf("HandleCallback failed: %+v", res)
	}
	if res.Username != "oauth_test_user-123" {
		t.Errorf("unexpected username %q", res.Username)
	}
	if atomic.LoadInt32(missing) != 0 {
		t.Error("token request did not carry the PKCE verifier")
	}

	cred, err := p.GetSigningCredential(ctx, ID("test", "user-123"))
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256([]byte("oauth|test|user-123|" + clientID))
	if cred.Password != hex.EncodeToString(sum[:]) {
		t.Error("unexpected password derivation")
	}

	if err := m.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	again := p.HandleCallback(ctx, "test", "good-code", initiate(t, p))
	if !again.Success || again.IsNewUser || again.UserPub != res.UserPub {
		t.Errorf("second callback should log into the same user: %+v", again)
	}
}

func TestCallbackRejectsBadState(t *testing.T) {
	ctx := context.Background()
	_, p, _ := newPlugin(t, "user-123")

	if res := p.HandleCallback(ctx, "test", "good-code", "made-up"); res.Success || res.Code != autherr.CodeOAuthFailed {
		t.Errorf("unexpected result %+v", res)
	}

	state := initiate(t, p)
	if res := p.HandleCallback(ctx, "test", "bad-code", state); res.Success || res.Code != autherr.CodeOAuthFailed {
		t.Errorf("unexpected result %+v", res)
	}
	if res := p.HandleCallback(ctx, "test", "good-code", state); res.Success {
		t.Error("state must be single use")
	}
}

func TestStateExpires(t *testing.T) {
	_, p, _ := newPlugin(t, "user-123")
	now := time.Now()
	p.now = func() time.Time { return now }

	state := initiate(t, p)
	now = now.Add(StateTTL + time.Second)

	res := p.HandleCallback(context.Background(), "test", "good-code", state)
	if res.Success || res.Code != autherr.CodeOAuthFailed {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestUnknownProvider(t *testing.T) {
	_, p, _ := newPlugin(t, "user-123")
	if _, err := p.InitiateOAuth("nope"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestLoginRequiresVerifiedIdentity(t *testing.T) {
	_, p, _ := newPlugin(t, "user-123")
	res := p.Login(context.Background(), ID("test", "someone-else"))
	if res.Success {
		t.Errorf("unverified identity logged in: %+v", res)
	}
}
