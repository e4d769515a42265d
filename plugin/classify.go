package plugin

import (
	"context"
	"errors"

	"github.com/getkayan/shogun/autherr"
	"github.com/getkayan/shogun/signer"
)

// Classify maps an error from the signer or a method onto the auth error
// taxonomy. Errors that already carry an *autherr.Error keep it.
func Classify(err error) *autherr.Error {
	if err == nil {
		return autherr.New(autherr.Unknown, autherr.CodeUnknown, "Unknown error", nil)
	}

	var ae *autherr.Error
	if errors.As(err, &ae) {
		return ae
	}

	switch {
	case errors.Is(err, signer.ErrInvalidIdentifier):
		return autherr.New(autherr.Validation, autherr.CodeInvalidIdentifier, "Invalid identifier", err)
	case errors.Is(err, signer.ErrUnavailable):
		return autherr.New(autherr.Environment, autherr.CodeWalletUnavailable, "No compatible wallet or authenticator available", err)
	case errors.Is(err, signer.ErrSignatureVerification):
		return autherr.New(autherr.Security, autherr.CodeSignatureVerificationFailed, "Signature verification failed", err)
	case errors.Is(err, signer.ErrCredentialNotFound):
		return autherr.New(autherr.Authentication, autherr.CodeCredentialNotFound, "Credential not found", err)
	case errors.Is(err, signer.ErrSignatureRequestFailed):
		return autherr.New(autherr.Authentication, autherr.CodeSignatureRequestFailed, "Signature request failed", err)
	case errors.Is(err, ErrNotInitialized):
		return autherr.New(autherr.Validation, autherr.CodePluginNotInitialized, "Plugin not initialized", err)
	case errors.Is(err, context.DeadlineExceeded):
		return autherr.New(autherr.Authentication, autherr.CodeLoginFailed, "Request timed out", err)
	case errors.Is(err, context.Canceled):
		return autherr.New(autherr.Authentication, autherr.CodeLoginFailed, "Request was cancelled", err)
	}
	return autherr.New(autherr.Unknown, autherr.CodeUnknown, err.Error(), err)
}
