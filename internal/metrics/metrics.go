// Package metrics exposes the ambient Prometheus counters and histograms
// scraped from /metrics, covering upload, dispatch, and catalogue query
// activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsRequested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ifcatlas_uploads_requested_total",
		Help: "Presigned upload URLs issued.",
	})

	UploadsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ifcatlas_uploads_completed_total",
		Help: "Uploads confirmed complete via object-storage HEAD.",
	})

	UploadsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ifcatlas_uploads_failed_total",
		Help: "Upload completion attempts that failed, by reason.",
	}, []string{"reason"})

	TasksDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ifcatlas_tasks_dispatched_total",
		Help: "Celery tasks enqueued onto the broker, by task name.",
	}, []string{"task"})

	TaskDispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ifcatlas_task_dispatch_failures_total",
		Help: "Broker enqueue failures, by task name.",
	}, []string{"task"})

	CatalogueQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ifcatlas_catalogue_query_duration_seconds",
		Help:    "Latency of building catalogue spatial queries.",
		Buckets: prometheus.DefBuckets,
	})

	CatalogueQueryResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ifcatlas_catalogue_query_results",
		Help:    "Number of buildings returned per catalogue query.",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ifcatlas_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)
