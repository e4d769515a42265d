// Package core is the host that authentication plugins report to.
//
// A Manager owns one graph database handle, one auth state machine and one
// event emitter. Plugins turn external proofs into a username, a password and
// optionally a derived pair, then hand them to Login or SignUp; the Manager
// drives the state machine around the graph handshake and returns a tagged
// result instead of an error.
//
// # Quick Start
//
//	m := core.NewManager(graph.NewMemory())
//	if err := m.Register(web3.New(provider)); err != nil {
//	    return err
//	}
//	p, _ := m.Plugin(web3.Name)
//	res := p.(plugin.AuthPlugin).Login(ctx, "0x...")
//	if !res.Success {
//	    return errors.New(res.Error)
//	}
package core

import (
	"context"

	"github.com/getkayan/shogun/autherr"
	"github.com/getkayan/shogun/graph"
	"github.com/getkayan/shogun/keys"
)

// AuthResult is returned by Login and by plugin logins. It is never an error
// value: failures set Success=false and Error.
type AuthResult struct {
	Success  bool         `json:"success"`
	UserPub  string       `json:"userPub,omitempty"`
	Username string       `json:"username,omitempty"`
	Error    string       `json:"error,omitempty"`
	Code     autherr.Code `json:"code,omitempty"`
	SEA      *keys.Pair   `json:"sea,omitempty"`
}

type SignUpResult struct {
	AuthResult
	IsNewUser bool `json:"isNewUser,omitempty"`
}

// Failure builds a failed AuthResult from err, keeping its code when err
// carries an *autherr.Error.
func Failure(err error) AuthResult {
	return AuthResult{
		Success: false,
		Error:   autherr.Message(err),
		Code:    autherr.CodeOf(err),
	}
}

// SignUpFailure is Failure for sign-ups.
func SignUpFailure(err error) SignUpResult {
	return SignUpResult{AuthResult: Failure(err)}
}

// Core is what plugins see of the host.
type Core interface {
	// Login authenticates as username. When pair is nil it is derived from
	// password.
	Login(ctx context.Context, username, password string, pair *keys.Pair) AuthResult
	// SignUp creates username and logs in as it.
	SignUp(ctx context.Context, username, password, email string, pair *keys.Pair) SignUpResult
	SetAuthMethod(method string)
	Emit(name string, data any)
	Graph() graph.Database
	// Errors is the shared diagnostic log plugins record failures in.
	Errors() *autherr.Handler
}

// Plugin is the lifecycle every registered plugin implements.
type Plugin interface {
	Name() string
	Initialize(c Core) error
	Destroy()
}
