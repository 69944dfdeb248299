package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DeltasEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graphstage_deltas_enqueued_total",
		Help: "Total number of delta events placed on the apply queue.",
	})

	DeltasApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graphstage_deltas_applied_total",
		Help: "Total number of delta events applied, labelled by operation.",
	}, []string{"operation"})

	DeltasDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graphstage_deltas_dropped_total",
		Help: "Total number of delta events rejected due to a full queue.",
	})

	Escalations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graphstage_escalations_total",
		Help: "Total number of deltas that escalated to a full rebuild.",
	})

	RebuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graphstage_rebuilds_total",
		Help: "Total number of completed full dataset rebuilds.",
	})

	RebuildsSuperseded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graphstage_rebuilds_superseded_total",
		Help: "Total number of queued rebuilds discarded by a newer request.",
	})

	RecordsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graphstage_records_dropped_total",
		Help: "Total number of malformed records dropped, labelled by kind.",
	}, []string{"kind"})

	PrepareDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "graphstage_prepare_duration_ms",
		Help:    "Full dataset preparation latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	LiveNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "graphstage_live_nodes",
		Help: "Current number of prepared nodes in the dataset.",
	})

	LiveEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "graphstage_live_edges",
		Help: "Current number of prepared links in the dataset.",
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "graphstage_queue_utilization_ratio",
		Help: "Current delta queue utilization (0–1).",
	})
)
