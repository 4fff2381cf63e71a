package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// ActiveConnections tracks whether the stream client is connected.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coinflip_stream_active_connections",
		Help: "Number of open settlement stream connections",
	})

	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinflip_stream_reconnect_attempts_total",
		Help: "Total number of stream reconnection attempts",
	})

	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinflip_stream_reconnect_failures_total",
		Help: "Total number of stream reconnection failures",
	})

	MessagesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinflip_stream_messages_received_total",
		Help: "Total number of stream events received",
	}, []string{"event_type"})

	MessagesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinflip_stream_messages_dropped_total",
		Help: "Total number of stream events dropped",
	}, []string{"reason"})
)
