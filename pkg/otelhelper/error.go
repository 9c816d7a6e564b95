package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks the span failed and records the error together with the
// attributes identifying what was being processed.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// CallAttributes identifies one call on a span. The provider id is omitted
// until the provider has assigned one.
func CallAttributes(callID, providerCallID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(CallIDKey, callID)}

	if providerCallID != "" {
		attrs = append(attrs, attribute.String(ProviderCallIDKey, providerCallID))
	}

	return attrs
}
