package rescache

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// metricSet mirrors the teacher repo's MetricSet shape (Hit/Latency/Error
// CounterVec/HistogramVec), extended with an admission counter and a
// strategy-outcome counter the spec's two new components need.
type metricSet struct {
	Hit       *prometheus.CounterVec
	Latency   *prometheus.HistogramVec
	Error     *prometheus.CounterVec
	Admission *prometheus.CounterVec
	Strategy  *prometheus.CounterVec
}

var latencyBuckets = []float64{
	1, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096,
}

const (
	hitLabelRedis = "redis"
	hitLabelFetch = "fetch"

	errLabelReadTransport  = "read_transport"
	errLabelWriteTransport = "write_transport"
	errLabelMalformed      = "malformed_envelope"
	errLabelLock           = "lock"

	admissionAccepted = "accepted"
	admissionRejected = "rejected"

	strategyValue    = "value"
	strategyNotFound = "not_found"
	strategyFailure  = "provider_failure"
)

func newMetricSet(appName string) *metricSet {
	return &metricSet{
		Hit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_rescache_hit_total", appName),
			Help: "cache outcomes by source: {redis, fetch}.",
		}, []string{"hit"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_rescache_latency_ms", appName),
			Help:    "get_or_fetch latency in ms by source.",
			Buckets: latencyBuckets,
		}, []string{"hit"}),
		Error: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_rescache_error_total", appName),
			Help: "internal errors by kind.",
		}, []string{"when"}),
		Admission: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_rescache_admission_total", appName),
			Help: "admission gate outcomes.",
		}, []string{"outcome"}),
		Strategy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_rescache_strategy_outcome_total", appName),
			Help: "ExecuteStrategy outcomes by classification.",
		}, []string{"outcome"}),
	}
}

func (m *metricSet) register() {
	for _, c := range []prometheus.Collector{m.Hit, m.Latency, m.Error, m.Admission, m.Strategy} {
		_ = prometheus.Register(c)
	}
}

func (m *metricSet) unregister() {
	for _, c := range []prometheus.Collector{m.Hit, m.Latency, m.Error, m.Admission, m.Strategy} {
		prometheus.Unregister(c)
	}
}
