// Package observability provides OpenTelemetry tracing and metrics for the
// HTTP client.
//
// The client only talks to the global providers, which are no-ops until a
// program installs real ones:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("bthttp"))
//	defer tp.Shutdown(ctx)
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("bthttp"))
//	defer mp.Shutdown(ctx)
//
// Each dispatched request is wrapped in a RequestContext, which owns the
// span and records the request metrics when it ends:
//
//	ctx, rc := observability.StartRequest(ctx, "GET", url, requestID, metrics)
//	defer rc.End(ctx, resp.StatusCode, resp.RemoteAddress, err)
package observability
