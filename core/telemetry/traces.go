package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span attribute keys
const (
	AttrEmail     = "accountguard.account.email"
	AttrUserID    = "accountguard.account.id"
	AttrSource    = "accountguard.client.source"
	AttrTokenKind = "accountguard.token.kind"
)

// SpanOptions provides configuration for span creation.
type SpanOptions struct {
	Email     string
	UserID    string
	Source    string
	TokenKind string
}

// StartSpan starts a new span carrying the account attributes that are set.
func (p *Provider) StartSpan(ctx context.Context, name string, opts SpanOptions) (context.Context, trace.Span) {
	var attrs []attribute.KeyValue
	if opts.Email != "" {
		attrs = append(attrs, attribute.String(AttrEmail, opts.Email))
	}
	if opts.UserID != "" {
		attrs = append(attrs, attribute.String(AttrUserID, opts.UserID))
	}
	if opts.Source != "" {
		attrs = append(attrs, attribute.String(AttrSource, opts.Source))
	}
	if opts.TokenKind != "" {
		attrs = append(attrs, attribute.String(AttrTokenKind, opts.TokenKind))
	}
	return p.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// SetSpanError marks a span as having an error.
func SetSpanError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddSpanEvent adds an event to the span.
func AddSpanEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// EndSpan ends a span, recording err when it is non-nil.
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		SetSpanError(span, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
