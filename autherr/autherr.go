// Package autherr is the structured error taxonomy shared by the auth
// manager and plugins.
//
// Errors are classified by Category and Code so callers can tell "install a
// wallet" apart from "check your password". A Handler keeps the most recent
// errors for diagnostics and fans them out to listeners; it never changes
// control flow.
package autherr

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/getkayan/shogun/internal/logger"
)

type Category string

const (
	Validation     Category = "validation"
	Authentication Category = "authentication"
	Security       Category = "security"
	Environment    Category = "environment"
	Unknown        Category = "unknown"
)

type Code string

const (
	CodeInvalidIdentifier           Code = "INVALID_IDENTIFIER"
	CodeMissingIdentifier           Code = "MISSING_IDENTIFIER"
	CodeWalletUnavailable           Code = "WALLET_UNAVAILABLE"
	CodeWebAuthnUnsupported         Code = "WEBAUTHN_UNSUPPORTED"
	CodeSignatureRequestFailed      Code = "SIGNATURE_REQUEST_FAILED"
	CodeSignatureVerificationFailed Code = "SIGNATURE_VERIFICATION_FAILED"
	CodeCredentialNotFound          Code = "CREDENTIAL_NOT_FOUND"
	CodeCredentialGenerationFailed  Code = "CREDENTIAL_GENERATION_FAILED"
	CodeLoginFailed                 Code = "LOGIN_FAILED"
	CodeSignUpFailed                Code = "SIGNUP_FAILED"
	CodeUserExists                  Code = "USER_EXISTS"
	CodeInvalidState                Code = "INVALID_STATE"
	CodePluginNotInitialized        Code = "PLUGIN_NOT_INITIALIZED"
	CodeOAuthFailed                 Code = "OAUTH_FAILED"
	CodeUnknown                     Code = "UNKNOWN"
)

// Error is a classified failure. Message is safe to show to a user; Err keeps
// the underlying cause for errors.Is/As.
type Error struct {
	ID       uuid.UUID
	Category Category
	Code     Code
	Message  string
	Err      error
	Time     time.Time
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Category, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Category, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error without recording it.
func New(category Category, code Code, message string, err error) *Error {
	return &Error{
		ID:       uuid.New(),
		Category: category,
		Code:     code,
		Message:  message,
		Err:      err,
		Time:     time.Now(),
	}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// Message returns the user-facing message for err: the Message of the first
// *Error in its chain, or err.Error() otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}

// Listener receives every error recorded by a Handler.
type Listener func(*Error)

// DefaultCapacity is the number of errors a Handler keeps.
const DefaultCapacity = 100

// Handler records classified errors in a bounded log.
type Handler struct {
	mu        sync.Mutex
	ring      []*Error
	next      int
	full      bool
	listeners []listenerEntry
	nextID    int
}

type listenerEntry struct {
	id int
	fn Listener
}

func NewHandler() *Handler {
	return NewHandlerWithCapacity(DefaultCapacity)
}

func NewHandlerWithCapacity(n int) *Handler {
	if n <= 0 {
		n = DefaultCapacity
	}
	return &Handler{ring: make([]*Error, n)}
}

// Handle classifies err, records it and notifies listeners. If err already
// carries an *Error, that classification is kept and only recorded.
func (h *Handler) Handle(category Category, code Code, message string, err error) *Error {
	var ae *Error
	if !errors.As(err, &ae) {
		ae = New(category, code, message, err)
	}
	h.Record(ae)
	return ae
}

// Record stores e and notifies listeners.
func (h *Handler) Record(e *Error) {
	h.mu.Lock()
	h.ring[h.next] = e
	h.next = (h.next + 1) % len(h.ring)
	if h.next == 0 {
		h.full = true
	}
	listeners := make([]Listener, len(h.listeners))
	for i, l := range h.listeners {
		listeners[i] = l.fn
	}
	h.mu.Unlock()

	logger.Named("autherr").Warn("auth error",
		zap.String("id", e.ID.String()),
		zap.String("category", string(e.Category)),
		zap.String("code", string(e.Code)),
		zap.String("message", e.Message),
		zap.Error(e.Err),
	)

	for _, l := range listeners {
		l(e)
	}
}

// Errors returns the recorded errors, oldest first.
func (h *Handler) Errors() []*Error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.full {
		out := make([]*Error, h.next)
		copy(out, h.ring[:h.next])
		return out
	}
	out := make([]*Error, 0, len(h.ring))
	out = append(out, h.ring[h.next:]...)
	return append(out, h.ring[:h.next]...)
}

// Last returns the most recent error, or nil.
func (h *Handler) Last() *Error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.full && h.next == 0 {
		return nil
	}
	return h.ring[(h.next-1+len(h.ring))%len(h.ring)]
}

func (h *Handler) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ring = make([]*Error, len(h.ring))
	h.next = 0
	h.full = false
}

// AddListener registers l and returns a function that removes it. Listeners
// run in registration order.
func (h *Handler) AddListener(l Listener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.listeners = append(h.listeners, listenerEntry{id: id, fn: l})
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, e := range h.listeners {
			if e.id == id {
				h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
				return
			}
		}
	}
}
