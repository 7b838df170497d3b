package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	openTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatkit_ws_open_total",
		Help: "Channels opened and authenticated.",
	})
	openFailureTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatkit_ws_open_failure_total",
		Help: "Dial attempts that produced no channel.",
	})
	droppedOutboundTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatkit_ws_dropped_outbound_total",
		Help: "Outbound events dropped because the queue was full.",
	})
)
