package metrics

import (
	"github.com/nrep-ug/mysql-monitor/pkg/monitoring"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the dbwatch service
type Metrics struct {
	// Probe metrics
	DatabaseUp    *prometheus.GaugeVec
	Probes        *prometheus.CounterVec
	ProbeDuration *prometheus.HistogramVec
	Transitions   *prometheus.CounterVec

	// Side effects
	Notifications *prometheus.CounterVec
	Remediations  *prometheus.CounterVec

	// WebSocket Hub metrics
	HubConnections *prometheus.GaugeVec
	HubMessages    *prometheus.CounterVec
}

// New registers the service metrics on mc.
func New(mc *monitoring.MetricsCollector) *Metrics {
	return &Metrics{
		DatabaseUp:     mc.NewGauge("database_up", "1 when the last probe reached the monitored database", []string{"driver"}),
		Probes:         mc.NewCounter("probes_total", "Database reachability probes", []string{"result"}),
		ProbeDuration:  mc.NewHistogram("probe_duration_seconds", "Database probe latency", []string{"driver"}, nil),
		Transitions:    mc.NewCounter("state_transitions_total", "Health state transitions", []string{"state"}),
		Notifications:  mc.NewCounter("notifications_total", "Operator notifications", []string{"result"}),
		Remediations:   mc.NewCounter("remediations_total", "Remediation command runs", []string{"result"}),
		HubConnections: mc.NewGauge("websocket_hub_connections_active", "Active WebSocket hub connections", nil),
		HubMessages:    mc.NewCounter("websocket_hub_messages_total", "WebSocket hub messages", []string{"type"}),
	}
}
