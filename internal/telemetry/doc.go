// Package telemetry wraps OpenTelemetry SDK initialization for delegraph,
// providing centralized TracerProvider and MeterProvider configuration.
// When telemetry is disabled, global providers stay noop and no external
// connection is made.
package telemetry
