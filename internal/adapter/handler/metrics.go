package handler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts dispatched commands and times their execution.
type Metrics struct {
	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gasops_commands_total",
			Help: "Dispatched commands by action and outcome.",
		}, []string{"action", "outcome"}),
		commandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gasops_command_duration_seconds",
			Help:    "Command execution time by action.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
	}
}

// knownActions bounds the action label set; arbitrary strings from
// rejected commands must not mint new label values.
var knownActions = map[Action]bool{
	ActionCreateOrder:    true,
	ActionCreateCustomer: true,
	ActionCheckInventory: true,
	ActionCheckRevenue:   true,
	ActionCheckOrder:     true,
	ActionAddCost:        true,
	ActionAddCheck:       true,
	ActionGetStatistics:  true,
}

func (m *Metrics) ObserveCommand(action Action, success bool, elapsed time.Duration) {
	label := string(action)
	if !knownActions[action] {
		label = "unknown"
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.commandsTotal.WithLabelValues(label, outcome).Inc()
	m.commandDuration.WithLabelValues(label).Observe(elapsed.Seconds())
}
