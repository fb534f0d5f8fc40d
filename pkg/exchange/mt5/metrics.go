package mt5

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is shared by the transport and the adapter. A nil registerer keeps
// the collectors unregistered.
type Metrics struct {
	requests      *prometheus.CounterVec
	requestTiming *prometheus.SummaryVec
	pollCycles    prometheus.Counter
	pollInterval  prometheus.Gauge
	emitted       *prometheus.CounterVec
	historyChunks *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mt5",
			Name:      "requests_total",
			Help:      "Calls made to the terminal middleware.",
		}, []string{"method", "outcome"}),
		requestTiming: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace:  "mt5",
			Name:       "request_duration_seconds",
			Help:       "Per method round trip time.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"method"}),
		pollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mt5",
			Name:      "poll_cycles_total",
			Help:      "Completed subscription poll cycles.",
		}),
		pollInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mt5",
			Name:      "poll_interval_seconds",
			Help:      "Current adaptive poll interval.",
		}),
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mt5",
			Name:      "emitted_total",
			Help:      "Market data events pushed to the router.",
		}, []string{"kind"}),
		historyChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mt5",
			Name:      "history_chunks_total",
			Help:      "Historical chunk requests by outcome.",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(m.requests, m.requestTiming, m.pollCycles, m.pollInterval, m.emitted, m.historyChunks)
	}
	return m
}

func (m *Metrics) observeRequest(method Method, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.requests.WithLabelValues(string(method), outcome).Inc()
	m.requestTiming.WithLabelValues(string(method)).Observe(elapsed.Seconds())
}

func (m *Metrics) observePollCycle(interval time.Duration) {
	m.pollCycles.Inc()
	m.pollInterval.Set(interval.Seconds())
}

func (m *Metrics) observeEmitted(kind string) {
	m.emitted.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeChunk(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.historyChunks.WithLabelValues(outcome).Inc()
}
