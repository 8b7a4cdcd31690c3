// Package otel provides an OpenTelemetry observer plugin for parallel
// handles. It emits span events (spawn, settle, abandon) with low overhead.
package otel
