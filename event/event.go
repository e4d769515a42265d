// Package event is a small synchronous observer registry used for plugin and
// manager notifications such as "auth:login" and "destroyed".
package event

import (
	"sync"
)

// Well-known event names.
const (
	AuthLogin     = "auth:login"
	AuthSignUp    = "auth:signup"
	AuthLogout    = "auth:logout"
	AuthError     = "auth:error"
	WalletReady   = "wallet:ready"
	StateChanged  = "state:changed"
	Destroyed     = "destroyed"
	PluginAdded   = "plugin:registered"
	PluginRemoved = "plugin:unregistered"
)

// Handler receives the payload passed to Emit.
type Handler func(data any)

type registration struct {
	id   int
	fn   Handler
	once bool
}

// Emitter dispatches events to handlers in registration order. The zero value
// is ready to use.
type Emitter struct {
	mu       sync.Mutex
	nextID   int
	handlers map[string][]registration
}

// On registers fn for name and returns a function that removes it.
func (e *Emitter) On(name string, fn Handler) func() {
	return e.add(name, fn, false)
}

// Once registers fn to run on the next emission of name only.
func (e *Emitter) Once(name string, fn Handler) func() {
	return e.add(name, fn, true)
}

func (e *Emitter) add(name string, fn Handler, once bool) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handlers == nil {
		e.handlers = make(map[string][]registration)
	}
	id := e.nextID
	e.nextID++
	e.handlers[name] = append(e.handlers[name], registration{id: id, fn: fn, once: once})

	return func() { e.remove(name, id) }
}

func (e *Emitter) remove(name string, id int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	regs := e.handlers[name]
	for i, r := range regs {
		if r.id == id {
			e.handlers[name] = append(regs[:i:i], regs[i+1:]...)
			break
		}
	}
	if len(e.handlers[name]) == 0 {
		delete(e.handlers, name)
	}
}

// Emit calls every handler registered for name and reports whether there were
// any. Handlers run synchronously outside the lock, so they may register or
// remove handlers themselves.
func (e *Emitter) Emit(name string, data any) bool {
	e.mu.Lock()
	regs := append([]registration(nil), e.handlers[name]...)
	if len(regs) > 0 {
		kept := e.handlers[name][:0:0]
		for _, r := range e.handlers[name] {
			if !r.once {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(e.handlers, name)
		} else {
			e.handlers[name] = kept
		}
	}
	e.mu.Unlock()

	for _, r := range regs {
		r.fn(data)
	}
	return len(regs) > 0
}

// ListenerCount returns the number of handlers registered for name.
func (e *Emitter) ListenerCount(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[name])
}

// RemoveAll drops every handler.
func (e *Emitter) RemoveAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = nil
}
