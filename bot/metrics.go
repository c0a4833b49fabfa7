package bot

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	stageDuration *prometheus.GaugeVec
	commands      *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cosmos",
			Subsystem: "bootstrap",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each bootstrap stage.",
		}, []string{"stage"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosmos",
			Name:      "commands_total",
			Help:      "Commands dispatched, by outcome.",
		}, []string{"command", "outcome"}),
	}
	for _, c := range []prometheus.Collector{m.stageDuration, m.commands} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) observeStage(name string, seconds float64) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(name).Set(seconds)
}

func (m *metrics) countCommand(name, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(name, outcome).Inc()
}
