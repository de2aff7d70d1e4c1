package tracing

import (
	"net/http"
	"strings"

	obscontext "github.com/smallbiznis/billingportal/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Transport opens a client span per outbound request and propagates trace
// and request id headers to the upstream.
type Transport struct {
	Base      http.RoundTripper
	Component string
}

func NewTransport(base http.RoundTripper, component string) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Component: component}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	tracer := otel.Tracer("billing-portal/" + t.Component)
	ctx, span := tracer.Start(req.Context(), "HTTP "+strings.ToUpper(req.Method)+" "+t.Component,
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req = req.Clone(ctx)
	InjectContext(ctx, propagation.HeaderCarrier(req.Header))
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" && req.Header.Get("X-Request-Id") == "" {
		req.Header.Set("X-Request-Id", requestID)
	}

	span.SetAttributes(SafeAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.host", req.URL.Host),
		attribute.String("http.path", req.URL.Path),
	)...)

	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		span.RecordError(SafeError(err))
		span.SetStatus(codes.Error, "transport error")
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, "upstream error")
	}
	return resp, nil
}
