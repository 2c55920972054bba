package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecordsReadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "routepusher_records_read_total",
			Help: "Dump file lines read.",
		},
	)

	RecordsAdvertisedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routepusher_records_advertised_total",
			Help: "Records advertised (or previewed in dry-run).",
		},
		[]string{"mode"},
	)

	RecordsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routepusher_records_rejected_total",
			Help: "Records skipped by the import pipeline.",
		},
		[]string{"reason"},
	)

	SessionEstablished = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "routepusher_session_established",
			Help: "Adjacency state (0/1).",
		},
	)

	SessionEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routepusher_session_events_total",
			Help: "Session lifecycle events by type.",
		},
		[]string{"event"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routepusher_notifications_total",
			Help: "NOTIFICATION and error events by direction and category.",
		},
		[]string{"direction", "category"},
	)

	UpdatesReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "routepusher_updates_received_total",
			Help: "UPDATE messages received from the peer.",
		},
	)

	PipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "routepusher_pipeline_duration_seconds",
			Help:    "Full-file import pipeline run duration.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	SinkWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "routepusher_sink_write_duration_seconds",
			Help:    "Journal/export write latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"sink"},
	)

	SinkErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routepusher_sink_errors_total",
			Help: "Journal/export write failures.",
		},
		[]string{"sink"},
	)

	JournalDedupTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "routepusher_journal_dedup_total",
			Help: "Journal inserts skipped because the event was already recorded.",
		},
	)

	JournalPrunedRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "routepusher_journal_pruned_rows_total",
			Help: "Journal rows removed by retention pruning.",
		},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(register)
}

func register() {
	prometheus.MustRegister(
		RecordsReadTotal,
		RecordsAdvertisedTotal,
		RecordsRejectedTotal,
		SessionEstablished,
		SessionEventsTotal,
		NotificationsTotal,
		UpdatesReceivedTotal,
		PipelineDuration,
		SinkWriteDuration,
		SinkErrorsTotal,
		JournalDedupTotal,
		JournalPrunedRowsTotal,
	)
}
