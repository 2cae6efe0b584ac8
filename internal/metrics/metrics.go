package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_messages_received_total",
			Help: "Total number of queue messages received",
		},
	)

	MessagesHandledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_messages_handled_total",
			Help: "Total number of queue messages handled, by outcome",
		},
		[]string{"outcome"},
	)

	MessageHandlingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_message_handling_duration_seconds",
			Help:    "Time from receipt to outcome for one queue message",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		},
		[]string{"outcome"},
	)

	MessagesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_messages_in_flight",
			Help: "Number of queue messages currently being handled",
		},
	)

	PollErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_poll_errors_total",
			Help: "Total number of failed queue receive calls",
		},
	)

	QueueDeleteErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_queue_delete_errors_total",
			Help: "Total number of failed queue message deletions",
		},
	)

	ProcessorRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_processor_runs_total",
			Help: "Total number of processor runs by upload type and status",
		},
		[]string{"upload_type", "status"},
	)

	ProcessorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_processor_duration_seconds",
			Help:    "Duration of processor runs in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 300, 900, 1800, 3600},
		},
		[]string{"upload_type", "stage"},
	)

	TranscodeRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_transcode_runs_total",
			Help: "Total number of transcoding engine invocations",
		},
		[]string{"pass", "status"},
	)

	TranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_transcode_duration_seconds",
			Help:    "Duration of transcoding engine invocations in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600, 7200},
		},
		[]string{"pass"},
	)

	RenditionFilesUploadedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_rendition_files_uploaded_total",
			Help: "Total number of rendition files uploaded",
		},
		[]string{"status"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_events_published_total",
			Help: "Total number of domain events published",
		},
		[]string{"routing_key", "status"},
	)

	EventPublishFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_event_publish_failures_total",
			Help: "Total number of domain events that could not be published",
		},
	)

	LockContentionTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_lock_contention_total",
			Help: "Total number of messages skipped because another worker held the key",
		},
	)

	AssetsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_assets_by_status",
			Help: "Number of media assets per lifecycle status",
		},
		[]string{"status"},
	)

	CleanupActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cleanup_actions_total",
			Help: "Total number of cleanup sweep actions",
		},
		[]string{"action"},
	)

	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_operation_duration_seconds",
			Help:    "Duration of storage operations in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	StorageBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_bytes_total",
			Help: "Total bytes transferred to/from storage",
		},
		[]string{"operation"},
	)

	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"type"},
	)

	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Total number of jobs processed",
		},
		[]string{"type", "status"},
	)

	JobsProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobs_processing_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"type", "stage"},
	)

	WorkerPoolActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_pool_active_jobs",
			Help: "Number of jobs currently being processed by workers",
		},
	)

	WorkerPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_pool_size",
			Help: "Size of the worker pool",
		},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application information",
		},
		[]string{"version", "environment", "service"},
	)

	AppUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_up",
			Help: "Application is up and running",
		},
	)
)

func RecordMessageHandled(outcome string, durationSeconds float64) {
	MessagesHandledTotal.WithLabelValues(outcome).Inc()
	MessageHandlingDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

func RecordProcessorRun(uploadType, status string, durationSeconds float64) {
	ProcessorRunsTotal.WithLabelValues(uploadType, status).Inc()
	ProcessorDuration.WithLabelValues(uploadType, "total").Observe(durationSeconds)
}

func RecordProcessorStage(uploadType, stage string, durationSeconds float64) {
	ProcessorDuration.WithLabelValues(uploadType, stage).Observe(durationSeconds)
}

func RecordTranscode(pass, status string, durationSeconds float64) {
	TranscodeRunsTotal.WithLabelValues(pass, status).Inc()
	TranscodeDuration.WithLabelValues(pass).Observe(durationSeconds)
}

func RecordRenditionUpload(status string) {
	RenditionFilesUploadedTotal.WithLabelValues(status).Inc()
}

func RecordEventPublished(routingKey, status string) {
	EventsPublishedTotal.WithLabelValues(routingKey, status).Inc()
	if status != "success" {
		EventPublishFailuresTotal.Inc()
	}
}

func RecordCleanup(action string, count int) {
	CleanupActionsTotal.WithLabelValues(action).Add(float64(count))
}

func SetAssetsByStatus(status string, count int64) {
	AssetsByStatus.WithLabelValues(status).Set(float64(count))
}

func RecordJobEnqueued(jobType string) {
	JobsEnqueuedTotal.WithLabelValues(jobType).Inc()
}

func SetAppInfo(version, environment, service string) {
	AppInfo.WithLabelValues(version, environment, service).Set(1)
	AppUp.Set(1)
}

func SetWorkerPoolSize(size int) {
	WorkerPoolSize.Set(float64(size))
}
