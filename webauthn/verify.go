package webauthn

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"

	"github.com/getkayan/shogun/signer"
)

// VerifyAssertion checks a over challenge for rpID against the COSE public
// key and returns the authenticator's sign count.
func VerifyAssertion(a *Assertion, coseKey, challenge []byte, rpID string) (uint32, error) {
	var client protocol.CollectedClientData
	if err := json.Unmarshal(a.ClientDataJSON, &client); err != nil {
		return 0, fmt.Errorf("%w: client data: %v", signer.ErrSignatureVerification, err)
	}
	if client.Type != protocol.AssertCeremony {
		return 0, fmt.Errorf("%w: unexpected ceremony %q", signer.ErrSignatureVerification, client.Type)
	}
	if client.Challenge != base64.RawURLEncoding.EncodeToString(challenge) {
		return 0, fmt.Errorf("%w: challenge mismatch", signer.ErrSignatureVerification)
	}

	var auth protocol.AuthenticatorData
	if err := auth.Unmarshal(a.AuthenticatorData); err != nil {
		return 0, fmt.Errorf("%w: authenticator data: %v", signer.ErrSignatureVerification, err)
	}
	rpHash := sha256.Sum256([]byte(rpID))
	if !bytes.Equal(auth.RPIDHash, rpHash[:]) {
		return 0, fmt.Errorf("%w: relying party mismatch", signer.ErrSignatureVerification)
	}
	if !auth.Flags.UserPresent() {
		return 0, fmt.Errorf("%w: user not present", signer.ErrSignatureVerification)
	}

	key, err := webauthncose.ParsePublicKey(coseKey)
	if err != nil {
		return 0, fmt.Errorf("%w: public key: %v", signer.ErrSignatureVerification, err)
	}

	clientHash := sha256.Sum256(a.ClientDataJSON)
	signed := append(append([]byte(nil), a.AuthenticatorData...), clientHash[:]...)
	ok, err := webauthncose.VerifySignature(key, signed, a.Signature)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", signer.ErrSignatureVerification, err)
	}
	if !ok {
		return 0, fmt.Errorf("%w: invalid assertion signature", signer.ErrSignatureVerification)
	}
	return auth.Counter, nil
}
