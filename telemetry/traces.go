package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	AttrMethod     = attribute.Key("shogun.auth.method")
	AttrUsername   = attribute.Key("shogun.auth.username")
	AttrExternalID = attribute.Key("shogun.credential.external_id")
)

func (p *Provider) start(ctx context.Context, name string, kv ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs := kv[:0]
	for _, a := range kv {
		if a.Value.AsString() != "" {
			attrs = append(attrs, a)
		}
	}
	return p.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

func (p *Provider) SpanLogin(ctx context.Context, username, method string) (context.Context, trace.Span) {
	return p.start(ctx, "shogun.login", AttrUsername.String(username), AttrMethod.String(method))
}

func (p *Provider) SpanSignUp(ctx context.Context, username, method string) (context.Context, trace.Span) {
	return p.start(ctx, "shogun.signup", AttrUsername.String(username), AttrMethod.String(method))
}

// SpanCredential covers a signer operation on one external identity.
func (p *Provider) SpanCredential(ctx context.Context, op, method, externalID string) (context.Context, trace.Span) {
	return p.start(ctx, "shogun.credential."+op, AttrMethod.String(method), AttrExternalID.String(externalID))
}

func (p *Provider) SpanDerive(ctx context.Context, method string) (context.Context, trace.Span) {
	return p.start(ctx, "shogun.derive", AttrMethod.String(method))
}

// EndSpan sets the span status from err and ends it.
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
