package widget

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sendRetryTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatkit_widget_send_retry_total",
		Help: "Unconfirmed sends re-emitted by the retry watchdog.",
	})
	sendFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatkit_widget_send_failed_total",
		Help: "Sends moved to the terminal failed state.",
	})
)
