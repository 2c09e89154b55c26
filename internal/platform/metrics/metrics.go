// Package metrics exposes Prometheus instrumentation for the control plane.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	PipelineSubmissions *prometheus.CounterVec
	ValidationFailures  *prometheus.CounterVec
	AdapterErrors       *prometheus.CounterVec
	InternalInvariants  prometheus.Counter
	CompileDuration     prometheus.Histogram
	TrainJobSubmissions *prometheus.CounterVec
	DeploymentCreations *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		PipelineSubmissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "modelplane_pipeline_submissions_total",
			Help: "Pipeline submissions by outcome.",
		}, []string{"outcome"}),
		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "modelplane_validation_failures_total",
			Help: "Validation failures by category.",
		}, []string{"category"}),
		AdapterErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "modelplane_adapter_errors_total",
			Help: "Errors returned by external system adapters.",
		}, []string{"adapter"}),
		InternalInvariants: factory.NewCounter(prometheus.CounterOpts{
			Name: "modelplane_internal_invariant_violations_total",
			Help: "Workflow compiler invariant violations.",
		}),
		CompileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "modelplane_workflow_compile_duration_seconds",
			Help:    "Time spent compiling pipeline definitions into workflow manifests.",
			Buckets: prometheus.DefBuckets,
		}),
		TrainJobSubmissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "modelplane_train_job_submissions_total",
			Help: "Training job submissions by outcome.",
		}, []string{"outcome"}),
		DeploymentCreations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "modelplane_deployment_creations_total",
			Help: "Deployment creations by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
