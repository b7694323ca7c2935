package llm

import (
	"sync/atomic"
	"time"
)

// Metrics counts outbound provider calls.
type Metrics struct {
	Calls        int64 `json:"calls"`
	Errors       int64 `json:"errors"`
	LatencyMsSum int64 `json:"latency_ms_sum"`
}

var globalMetrics Metrics

// GetMetrics returns the current metrics snapshot
func GetMetrics() Metrics {
	return Metrics{
		Calls:        atomic.LoadInt64(&globalMetrics.Calls),
		Errors:       atomic.LoadInt64(&globalMetrics.Errors),
		LatencyMsSum: atomic.LoadInt64(&globalMetrics.LatencyMsSum),
	}
}

// ResetMetrics resets all metrics (useful for testing)
func ResetMetrics() {
	atomic.StoreInt64(&globalMetrics.Calls, 0)
	atomic.StoreInt64(&globalMetrics.Errors, 0)
	atomic.StoreInt64(&globalMetrics.LatencyMsSum, 0)
}

// RecordProviderCall records one provider call and its outcome.
func RecordProviderCall(duration time.Duration, err error) {
	atomic.AddInt64(&globalMetrics.Calls, 1)
	atomic.AddInt64(&globalMetrics.LatencyMsSum, duration.Milliseconds())
	if err != nil {
		atomic.AddInt64(&globalMetrics.Errors, 1)
	}
}
