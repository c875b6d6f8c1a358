package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RequestContext tracks one outbound request from dispatch until its
// response (or failure) is known.
type RequestContext struct {
	Method    string
	URL       string
	RequestID string
	StartTime time.Time
	Metrics   *ClientMetrics

	span trace.Span
}

// StartRequest opens a client span named "httpclient.<METHOD>". If metrics
// is nil, metric recording is skipped.
func StartRequest(ctx context.Context, method, url, requestID string, metrics *ClientMetrics) (context.Context, *RequestContext) {
	ctx, span := StartSpan(ctx, SpanHTTPClient+"."+method, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrURL, url),
		attribute.String(AttrRequestID, requestID),
	)
	return ctx, &RequestContext{
		Method:    method,
		URL:       url,
		RequestID: requestID,
		StartTime: time.Now(),
		Metrics:   metrics,
		span:      span,
	}
}

// End closes the span and records the request metrics. A non-nil err marks
// a transport failure; statusCode is then ignored.
func (rc *RequestContext) End(ctx context.Context, statusCode int, remoteAddr string, err error) {
	duration := time.Since(rc.StartTime)

	outcome := OutcomeOK
	switch {
	case err != nil:
		outcome = OutcomeTransport
		statusCode = 0
		rc.span.RecordError(err)
		rc.span.SetStatus(codes.Error, err.Error())
		rc.span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	case statusCode >= 400 && statusCode <= 599:
		outcome = OutcomeHTTPError
		rc.span.SetStatus(codes.Error, "HTTP error status")
	}

	if err == nil {
		rc.span.SetAttributes(
			attribute.Int(AttrHTTPStatusCode, statusCode),
			attribute.String(AttrPeerAddress, remoteAddr),
		)
	}
	rc.span.End()

	rc.Metrics.RecordRequest(ctx, rc.Method, outcome, statusCode, duration)
}

// Duration returns the elapsed time since the request started.
func (rc *RequestContext) Duration() time.Duration {
	return time.Since(rc.StartTime)
}
