// Package authstate implements the authentication state machine shared by the
// auth manager and its plugins.
//
// The machine is a plain value: each auth manager owns one, and tests can run
// any number of isolated instances. Transitions not listed in the table are
// hard errors; the machine never coerces an illegal sequence.
//
//	disconnected        --create-->              creating
//	disconnected        --authenticate-->        pending
//	creating            --success|fail-->        disconnected
//	pending             --success-->             authorized
//	pending             --fail-->                disconnected
//	authorized          --disconnect-->          leaving
//	authorized          --wallet_init_start-->   wallet_initializing
//	leaving             --success-->             disconnected
//	leaving             --fail-->                authorized
//	wallet_initializing --wallet_init_success--> wallet_ready
//	wallet_initializing --wallet_init_fail-->    authorized
//	wallet_initializing --disconnect-->          leaving
//	wallet_ready        --disconnect-->          leaving
//
// A successful create returns to disconnected; the caller is expected to
// authenticate next.
package authstate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type State string

const (
	Disconnected       State = "disconnected"
	Creating           State = "creating"
	Pending            State = "pending"
	Authorized         State = "authorized"
	Leaving            State = "leaving"
	WalletInitializing State = "wallet_initializing"
	WalletReady        State = "wallet_ready"
)

type Event string

const (
	Create            Event = "create"
	Authenticate      Event = "authenticate"
	Success           Event = "success"
	Fail              Event = "fail"
	Disconnect        Event = "disconnect"
	WalletInitStart   Event = "wallet_init_start"
	WalletInitSuccess Event = "wallet_init_success"
	WalletInitFail    Event = "wallet_init_fail"
)

var transitions = map[State]map[Event]State{
	Disconnected: {
		Create:       Creating,
		Authenticate: Pending,
	},
	Creating: {
		Success: Disconnected,
		Fail:    Disconnected,
	},
	Pending: {
		Success: Authorized,
		Fail:    Disconnected,
	},
	Authorized: {
		Disconnect:      Leaving,
		WalletInitStart: WalletInitializing,
	},
	Leaving: {
		Success: Disconnected,
		Fail:    Authorized,
	},
	WalletInitializing: {
		WalletInitSuccess: WalletReady,
		WalletInitFail:    Authorized,
		Disconnect:        Leaving,
	},
	WalletReady: {
		Disconnect: Leaving,
	},
}

// StateTransitionError reports an event that is not defined for a state.
type StateTransitionError struct {
	State State
	Event Event
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("authstate: invalid transition from %q on event %q", e.State, e.Event)
}

// Next is the pure transition function.
func Next(s State, e Event) (State, error) {
	if next, ok := transitions[s][e]; ok {
		return next, nil
	}
	return s, &StateTransitionError{State: s, Event: e}
}

// StateMachine is the contract consumers of the auth state depend on.
type StateMachine interface {
	State() State
	Set(e Event) (State, error)
	Subscribe(fn func(State)) (unsubscribe func())
	WaitForState(ctx context.Context, target State, timeout time.Duration) bool

	IsAuthenticated() bool
	IsWalletReady() bool
	IsBusy() bool
	CanStartAuth() bool
	CanLogout() bool
}

// TransitionHook observes every successful transition.
type TransitionHook func(from, to State, e Event)

type subscriber struct {
	id int
	fn func(State)
}

type waiter struct {
	target State
	done   chan struct{}
}

// Machine is the default StateMachine.
type Machine struct {
	mu      sync.Mutex
	state   State
	nextID  int
	subs    []subscriber
	waiters map[int]*waiter
	hook    TransitionHook
}

var _ StateMachine = (*Machine)(nil)

// New returns a machine in the disconnected state.
func New() *Machine {
	return &Machine{
		state:   Disconnected,
		waiters: make(map[int]*waiter),
	}
}

// OnTransition installs a hook called after every successful transition.
func (m *Machine) OnTransition(h TransitionHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = h
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Set applies e and returns the new state, or a *StateTransitionError if e is
// not defined for the current state.
func (m *Machine) Set(e Event) (State, error) {
	m.mu.Lock()
	from := m.state
	next, err := Next(from, e)
	if err != nil {
		m.mu.Unlock()
		return from, err
	}
	m.state = next

	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	for id, w := range m.waiters {
		if w.target == next {
			close(w.done)
			delete(m.waiters, id)
		}
	}
	hook := m.hook
	m.mu.Unlock()

	if hook != nil {
		hook(from, next, e)
	}
	for _, s := range subs {
		s.fn(next)
	}
	return next, nil
}

// Subscribe calls fn immediately with the current state and then after every
// transition, in subscription order.
func (m *Machine) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	current := m.state
	m.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i], m.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// WaitForState blocks until the machine enters target, the timeout elapses,
// or ctx is done. It reports whether target was reached.
func (m *Machine) WaitForState(ctx context.Context, target State, timeout time.Duration) bool {
	m.mu.Lock()
	if m.state == target {
		m.mu.Unlock()
		return true
	}
	id := m.nextID
	m.nextID++
	w := &waiter{target: target, done: make(chan struct{})}
	m.waiters[id] = w
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.done:
		return true
	case <-timer.C:
	case <-ctx.Done():
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, pending := m.waiters[id]; !pending {
		// Reached between the timeout firing and taking the lock.
		return true
	}
	delete(m.waiters, id)
	return false
}

func (m *Machine) IsAuthenticated() bool {
	switch m.State() {
	case Authorized, WalletInitializing, WalletReady:
		return true
	}
	return false
}

func (m *Machine) IsWalletReady() bool { return m.State() == WalletReady }

func (m *Machine) IsBusy() bool {
	switch m.State() {
	case Creating, Pending, Leaving, WalletInitializing:
		return true
	}
	return false
}

func (m *Machine) CanStartAuth() bool { return m.State() == Disconnected }

func (m *Machine) CanLogout() bool {
	switch m.State() {
	case Authorized, WalletInitializing, WalletReady:
		return true
	}
	return false
}
