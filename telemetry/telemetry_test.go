package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDisabledProviderIsNoop(t *testing.T) {
	p := Disabled()
	ctx := context.Background()

	p.RecordLogin(ctx, "web3", true)
	p.RecordSignUp(ctx, "nostr", false)
	p.RecordTransition(ctx, "disconnected", "pending", "authenticate")
	p.RecordAuthDuration(ctx, "webauthn", time.Second)
	p.RecordDeriveDuration(ctx, "web3", time.Millisecond)

	ctx, span := p.SpanLogin(ctx, "web3_0xabc", "web3")
	if span == nil {
		t.Fatal("expected a span even when disabled")
	}
	EndSpan(span, errors.New("boom"))

	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestEnabledProvider(t *testing.T) {
	cfg := DefaultConfig()
	p, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	defer p.Shutdown(context.Background())

	ctx := context.Background()
	p.RecordLogin(ctx, "web3", true)
	p.RecordDeriveDuration(ctx, "web3", 10*time.Millisecond)

	_, span := p.SpanDerive(ctx, "web3")
	if !span.SpanContext().IsValid() {
		t.Error("expected a recording span from the sdk tracer")
	}
	EndSpan(span, nil)
}
