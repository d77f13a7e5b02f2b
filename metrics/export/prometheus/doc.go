// Package prometheus exports goIdentity engine counters through a client_golang
// [prometheus.Collector]. The verify latency histogram is exported only when latency
// histograms are enabled on the engine.
package prometheus
