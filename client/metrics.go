package client

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	total   *prometheus.CounterVec
	seconds *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stack",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total number of backend requests",
		}, []string{"op", "success"}),
		seconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stack",
			Subsystem: "client",
			Name:      "request_seconds",
			Help:      "Backend request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "success"}),
	}
	for _, c := range []prometheus.Collector{m.total, m.seconds} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) observe(op string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	label := fmt.Sprintf("%t", success)
	m.total.WithLabelValues(op, label).Inc()
	m.seconds.WithLabelValues(op, label).Observe(d.Seconds())
}
