package api

import (
	"fmt"
	"net/http"
	"time"

	"pinrelay/internal/flow"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements flow.Observer with Prometheus collectors on its own registry.
type Metrics struct {
	Registry *prometheus.Registry
	Resets   *prometheus.CounterVec
	Delivery *prometheus.HistogramVec
}

func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	resets := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pinrelay",
		Name:      "reset_outcomes_total",
		Help:      "PIN resets partitioned by outcome.",
	}, []string{"outcome"})
	if err := reg.Register(resets); err != nil {
		return nil, fmt.Errorf("register resets collector: %w", err)
	}

	delivery := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pinrelay",
		Name:      "delivery_duration_seconds",
		Help:      "Time spent delivering a new PIN, partitioned by result.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"result"})
	if err := reg.Register(delivery); err != nil {
		return nil, fmt.Errorf("register delivery collector: %w", err)
	}

	return &Metrics{Registry: reg, Resets: resets, Delivery: delivery}, nil
}

func (m *Metrics) ObserveReset(outcome flow.Outcome) {
	m.Resets.WithLabelValues(outcome.String()).Inc()
}

func (m *Metrics) ObserveDelivery(delivered bool, elapsed time.Duration) {
	result := "undelivered"
	if delivered {
		result = "delivered"
	}
	m.Delivery.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
