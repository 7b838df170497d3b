package presence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var resetTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatkit_presence_resets_total",
	Help: "Typing events that set or refreshed the presence slot.",
})
