// Copyright 2025 James Ross
package obs

import (
    "fmt"
    "net/http"

    "github.com/videoforge/engine/internal/config"
    "github.com/prometheus/client_golang/prometheus"
    promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    JobsEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
        Name: "jobs_enqueued_total",
        Help: "Total number of job executions enqueued",
    })
    JobsDequeued = prometheus.NewCounter(prometheus.CounterOpts{
        Name: "jobs_dequeued_total",
        Help: "Total number of job executions reserved by workers",
    })
    JobsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
        Name: "jobs_completed_total",
        Help: "Total number of job executions that reached SUCCESS",
    })
    JobsFailed = prometheus.NewCounter(prometheus.CounterOpts{
        Name: "jobs_failed_total",
        Help: "Total number of job executions that reached FAILED",
    })
    JobsRetried = prometheus.NewCounter(prometheus.CounterOpts{
        Name: "jobs_retried_total",
        Help: "Total number of job execution retries",
    })
    JobsDeadLetter = prometheus.NewCounter(prometheus.CounterOpts{
        Name: "jobs_dead_letter_total",
        Help: "Total number of job executions moved to the dead letter queue",
    })
    JobProcessingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
        Name:    "job_processing_duration_seconds",
        Help:    "Histogram of end-to-end job execution durations",
        Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3000, 3600},
    })
    StepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
        Name:    "pipeline_step_duration_seconds",
        Help:    "Histogram of per-step pipeline durations",
        Buckets: prometheus.DefBuckets,
    }, []string{"step"})
    StepFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
        Name: "pipeline_step_failures_total",
        Help: "Total number of pipeline step failures by step name",
    }, []string{"step"})
    QueueLength = prometheus.NewGaugeVec(prometheus.GaugeOpts{
        Name: "queue_length",
        Help: "Current length of broker queues",
    }, []string{"queue"})
    CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
        Name: "circuit_breaker_state",
        Help: "0 Closed, 1 HalfOpen, 2 Open",
    }, []string{"service"})
    CircuitBreakerTrips = prometheus.NewCounterVec(prometheus.CounterOpts{
        Name: "circuit_breaker_trips_total",
        Help: "Count of times a service's circuit breaker transitioned to Open",
    }, []string{"service"})
    ReaperRecovered = prometheus.NewCounter(prometheus.CounterOpts{
        Name: "reaper_recovered_total",
        Help: "Total number of executions recovered from abandoned processing lists",
    })
    WorkerActive = prometheus.NewGauge(prometheus.GaugeOpts{
        Name: "worker_active",
        Help: "Number of active worker goroutines",
    })
    ExternalServiceCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
        Name: "external_service_calls_total",
        Help: "Total calls to external services by service and outcome",
    }, []string{"service", "outcome"})
    LLMCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
        Name: "llm_cache_hits_total",
        Help: "Total number of LLM responses served from the Redis cache",
    })
    JobsTimedOut = prometheus.NewCounter(prometheus.CounterOpts{
        Name: "jobs_timed_out_total",
        Help: "Total number of executions reset to TIMEOUT by the scheduler",
    })
    ExecutionsByStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
        Name: "executions_by_status",
        Help: "Current count of job_executions rows by status",
    }, []string{"status"})
)

func init() {
    prometheus.MustRegister(
        JobsEnqueued, JobsDequeued, JobsCompleted, JobsFailed, JobsRetried, JobsDeadLetter,
        JobProcessingDuration, StepDuration, StepFailures, QueueLength,
        CircuitBreakerState, CircuitBreakerTrips, ReaperRecovered, WorkerActive,
        ExternalServiceCalls, LLMCacheHits, JobsTimedOut, ExecutionsByStatus,
    )
}

// StartMetricsServer exposes /metrics and returns a server for controlled shutdown.
// StartMetricsServer is retained for compatibility but consider using StartHTTPServer
// which also registers health endpoints.
func StartMetricsServer(cfg *config.Config) *http.Server {
    mux := http.NewServeMux()
    mux.Handle("/metrics", promhttp.Handler())
    srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Observability.MetricsPort), Handler: mux}
    go func() { _ = srv.ListenAndServe() }()
    return srv
}
