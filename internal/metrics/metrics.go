package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "benq_projector"

// Metrics groups the driver's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	deviceRequests  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	pollCycles      *prometheus.CounterVec
	commands        *prometheus.CounterVec
	alive           prometheus.Gauge
	power           prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		deviceRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "device_requests_total",
				Help:      "HTTP requests sent to the projector bridge by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "device_request_duration_seconds",
				Help:      "Latency of projector bridge requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		pollCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_cycles_total",
				Help:      "Completed poll cycles by outcome",
			},
			[]string{"outcome"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Power commands handled by command and outcome",
			},
			[]string{"command", "outcome"},
		),
		alive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridge_alive",
			Help:      "Last alive value reported by the bridge",
		}),
		power: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_on",
			Help:      "1 if the projector answered the last model name query",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.deviceRequests, m.requestDuration, m.pollCycles, m.commands, m.alive, m.power)
	}
	return m
}

func (m *Metrics) ObserveRequest(endpoint string, err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.deviceRequests.WithLabelValues(endpoint, outcome).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(took.Seconds())
}

func (m *Metrics) PollCycle(outcome string) {
	if m == nil {
		return
	}
	m.pollCycles.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Command(command, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) SetAlive(v float64) {
	if m == nil {
		return
	}
	m.alive.Set(v)
}

func (m *Metrics) SetPower(on bool) {
	if m == nil {
		return
	}
	if on {
		m.power.Set(1)
		return
	}
	m.power.Set(0)
}
