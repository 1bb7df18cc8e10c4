package metrics

import "github.com/prometheus/client_golang/prometheus"

// ExchangeMetrics exposes counters/histograms for the conversation pipeline.
type ExchangeMetrics struct {
	exchangesTotal     *prometheus.CounterVec
	modelFallbackTotal prometheus.Counter
	exchangeLatency    prometheus.Histogram
}

func NewExchangeMetrics(reg prometheus.Registerer) *ExchangeMetrics {
	m := &ExchangeMetrics{
		exchangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadqual",
			Subsystem: "conversation",
			Name:      "exchanges_total",
			Help:      "Total orchestrated exchanges",
		}, []string{"intent", "status"}),
		modelFallbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leadqual",
			Subsystem: "conversation",
			Name:      "model_fallback_total",
			Help:      "Exchanges that fell back to the rule-based path",
		}),
		exchangeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "leadqual",
			Subsystem: "conversation",
			Name:      "exchange_latency_seconds",
			Help:      "Latency of end-to-end exchange handling",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.exchangesTotal, m.modelFallbackTotal, m.exchangeLatency)
	return m
}

func (m *ExchangeMetrics) ObserveExchange(intent, status string) {
	if m == nil {
		return
	}
	m.exchangesTotal.WithLabelValues(intent, status).Inc()
}

func (m *ExchangeMetrics) ObserveModelFallback() {
	if m == nil {
		return
	}
	m.modelFallbackTotal.Inc()
}

func (m *ExchangeMetrics) ObserveExchangeLatency(seconds float64) {
	if m == nil {
		return
	}
	m.exchangeLatency.Observe(seconds)
}
