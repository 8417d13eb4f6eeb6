package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vaultetl",
		Name:      "imported_records_total",
		Help:      "Records processed by imports, by kind and outcome.",
	}, []string{"kind", "outcome"})

	importRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vaultetl",
		Name:      "imports_total",
		Help:      "Finished imports, by status.",
	}, []string{"status"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vaultetl",
		Name:      "import_batch_duration_seconds",
		Help:      "Time to write and commit one import batch.",
		Buckets:   prometheus.DefBuckets,
	})

	restoredFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vaultetl",
		Name:      "restored_files_total",
		Help:      "Files handled by restore, by outcome.",
	}, []string{"outcome"})

	verifiedFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vaultetl",
		Name:      "verified_files_total",
		Help:      "Files checked by verify, by outcome.",
	}, []string{"outcome"})

	activeImports = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "vaultetl",
		Name:      "active_imports",
		Help:      "Imports currently holding a limiter slot.",
	}, func() float64 {
		if l := currentLimiter.Load(); l != nil {
			return float64(l.ActiveCount())
		}
		return 0
	})
)
