// Package metrics defines the Prometheus collectors exported on /metrics
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedBytesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cotrack_feed_bytes_received_total",
		Help: "Bytes handed to feed decoders",
	}, []string{"format"})

	FeedBytesDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cotrack_feed_bytes_discarded_total",
		Help: "Bytes dropped by the chunker because no complete message fitted in the buffer",
	}, []string{"format"})

	FeedChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cotrack_feed_chunks_total",
		Help: "Complete protocol messages extracted from feeds",
	}, []string{"format"})

	FeedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cotrack_feed_messages_total",
		Help: "Transponder messages produced by feed decoders",
	}, []string{"format"})

	FeedErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cotrack_feed_errors_total",
		Help: "Protocol messages rejected with an error",
	}, []string{"format"})

	FeedConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cotrack_feed_connected",
		Help: "1 while the named feed is connected",
	}, []string{"feed"})

	AircraftTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cotrack_aircraft_tracked",
		Help: "Aircraft held in the aircraft list",
	})

	AircraftChangeSets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cotrack_aircraft_changesets_total",
		Help: "Change sets recorded across all aircraft",
	})

	LookupRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cotrack_lookup_requests_total",
		Help: "Calls made to the lookup provider by result",
	}, []string{"result"})

	LookupOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cotrack_lookup_outcomes_total",
		Help: "Lookup outcomes by source (provider, cache) and whether the aircraft was found",
	}, []string{"source", "found"})

	LookupPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cotrack_lookup_pending",
		Help: "Addresses waiting to be looked up",
	})

	FeedReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cotrack_feed_reconnects_total",
		Help: "Times a feed connection was lost and redialled",
	}, []string{"feed"})

	ArchivedChangeSets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cotrack_archive_changesets_total",
		Help: "Change sets handed to the archive by result (written, failed, dropped)",
	}, []string{"result"})

	PrunedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cotrack_storage_pruned_rows_total",
		Help: "Rows removed by retention pruning",
	}, []string{"table"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cotrack_http_requests_total",
		Help: "API requests by route and status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cotrack_http_request_duration_seconds",
		Help:    "API request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
