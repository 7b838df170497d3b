package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	appendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatkit_store_appended_total",
		Help: "Provisional records appended by local sends.",
	})
	ingestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatkit_store_ingested_total",
		Help: "Remote messages appended as new canonical records.",
	})
	reconciledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatkit_store_reconciled_total",
		Help: "Provisional records replaced in place by their authoritative echo.",
	})
	duplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatkit_store_duplicate_dropped_total",
		Help: "Remote messages dropped because their canonical id was already present.",
	})
)
