/*
Package observability provides metrics and tracing for the callflow engine.

Metrics are Prometheus collectors fed through domain.LifecycleHooks, so the
editor and the preview engine stay unaware of Prometheus. Tracing wraps
OpenTelemetry's global tracer; install a provider with otel.SetTracerProvider
to export spans.
*/
package observability
