package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	PublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinflip_notify_published_total",
		Help: "Total number of events delivered per sink",
	}, []string{"sink", "type"})

	SinkErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinflip_notify_sink_errors_total",
		Help: "Total number of failed sink deliveries",
	}, []string{"sink"})

	DroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinflip_notify_dropped_total",
		Help: "Total number of events dropped before delivery",
	}, []string{"reason"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coinflip_notify_queue_depth",
		Help: "Events waiting for delivery",
	})

	HubClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coinflip_notify_ws_clients",
		Help: "Connected websocket subscribers",
	})
)
