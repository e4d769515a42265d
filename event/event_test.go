package event

import "testing"

func TestOnAndUnsubscribe(t *testing.T) {
	var e Emitter

	var got []any
	off := e.On(AuthLogin, func(data any) { got = append(got, data) })

	if !e.Emit(AuthLogin, "alice") {
		t.Error("Emit should report a delivered event")
	}
	off()
	off()
	if e.Emit(AuthLogin, "bob") {
		t.Error("Emit should report no handlers after unsubscribe")
	}

	if len(got) != 1 || got[0] != "alice" {
		t.Errorf("unexpected deliveries %v", got)
	}
}

func TestOnceFiresOnce(t *testing.T) {
	var e Emitter

	calls := 0
	e.Once(Destroyed, func(any) { calls++ })
	e.Emit(Destroyed, nil)
	e.Emit(Destroyed, nil)

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if e.ListenerCount(Destroyed) != 0 {
		t.Error("once handler should be removed after firing")
	}
}

func TestOrderAndReentrancy(t *testing.T) {
	var e Emitter

	var order []int
	e.On("x", func(any) {
		order = append(order, 1)
		e.On("x", func(any) { order = append(order, 3) })
	})
	e.On("x", func(any) { order = append(order, 2) })

	e.Emit("x", nil)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("unexpected first emission order %v", order)
	}

	order = nil
	e.Emit("x", nil)
	if len(order) != 3 || order[2] != 3 {
		t.Errorf("handler added during emit should fire next time, got %v", order)
	}
}

func TestRemoveAll(t *testing.T) {
	var e Emitter
	e.On("a", func(any) {})
	e.On("b", func(any) {})
	e.RemoveAll()

	if e.ListenerCount("a")+e.ListenerCount("b") != 0 {
		t.Error("expected all handlers removed")
	}
}
