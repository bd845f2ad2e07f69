package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	passOutcomeCompleted = "completed"
	passOutcomeFailed    = "failed"
	passOutcomeAborted   = "aborted"
	passSkippedOffline   = "skipped_offline"
	passSkippedInFlight  = "skipped_in_flight"
)

var (
	syncPassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cartsync_sync_passes_total",
		Help: "Sync pass attempts by outcome",
	}, []string{"outcome"})

	syncItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cartsync_sync_items_total",
		Help: "Queued line items handled by sync passes, by resolution",
	}, []string{"resolution"})

	offlineQueueQuantity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cartsync_offline_queue_quantity",
		Help: "Sum of quantities currently held in the offline queue",
	})

	syncPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cartsync_sync_pass_duration_seconds",
		Help:    "Wall time of completed sync passes",
		Buckets: prometheus.DefBuckets,
	})
)
