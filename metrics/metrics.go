package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pelegram_ws_connections",
		Help: "Currently open websocket connections.",
	})

	EventsIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pelegram_events_in_total",
		Help: "Inbound socket events by name.",
	}, []string{"event"})

	EventsOut = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pelegram_events_out_total",
		Help: "Outbound fan-out emissions by event name.",
	}, []string{"event"})

	FanoutDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pelegram_fanout_dropped_total",
		Help: "Payloads dropped because a client send queue was full.",
	})

	PresenceSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pelegram_presence_sweeps_total",
		Help: "Presence idle sweeps executed.",
	})
)
