// Package otel publishes goIdentity engine counters as OpenTelemetry observable
// instruments.
//
// The caller owns the MeterProvider and passes a Meter to [New]. Counters become
// Int64ObservableCounter instruments; the verify latency histogram becomes a cumulative
// bucket gauge with an "le" attribute and a count gauge.
package otel
