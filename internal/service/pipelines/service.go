// Package pipelines orchestrates pipeline submission: parse, persist,
// compile and hand off to the workflow engine.
package pipelines

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modelplane-labs/modelplane-go/internal/adapters/orchestrator"
	"github.com/modelplane-labs/modelplane-go/internal/domain"
	"github.com/modelplane-labs/modelplane-go/internal/pipeline/argo"
	"github.com/modelplane-labs/modelplane-go/internal/pipeline/parser"
	"github.com/modelplane-labs/modelplane-go/internal/platform/metrics"
	"github.com/modelplane-labs/modelplane-go/internal/repo"
)

type Service struct {
	logger    *slog.Logger
	pipelines repo.PipelineRepository
	orch      orchestrator.Orchestrator
	builder   *argo.Builder
	metrics   *metrics.Metrics
	namespace string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(logger *slog.Logger, pipelineRepo repo.PipelineRepository, orch orchestrator.Orchestrator, builder *argo.Builder, m *metrics.Metrics, namespace string) *Service {
	if logger == nil || pipelineRepo == nil || orch == nil || builder == nil {
		return nil
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = "default"
	}
	return &Service{
		logger:    logger,
		pipelines: pipelineRepo,
		orch:      orch,
		builder:   builder,
		metrics:   m,
		namespace: namespace,
		locks:     make(map[string]*sync.Mutex),
	}
}

type SubmitInput struct {
	ProjectID string
	Actor     string
	Namespace string
	Metadata  domain.Metadata
	Input     parser.Input
}

// Submit validates and persists a pipeline, compiles it into a workflow
// manifest and hands the manifest to the orchestrator. A submission that
// fails at the orchestrator is kept as submit_failed with no workflow name
// so it can be retried.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (domain.Pipeline, error) {
	projectID := strings.TrimSpace(in.ProjectID)
	if projectID == "" {
		return domain.Pipeline{}, errors.New("project id is required")
	}

	def, err := parser.Parse(in.Input)
	if err != nil {
		s.countValidationFailure("invalid_pipeline")
		return domain.Pipeline{}, err
	}

	namespace := strings.TrimSpace(in.Namespace)
	if namespace == "" {
		namespace = s.namespace
	}

	pipeline := domain.Pipeline{
		ID:                  uuid.NewString(),
		ProjectID:           projectID,
		Name:                def.Name,
		OrchestrationSystem: def.OrchestrationSystem,
		Namespace:           namespace,
		Status:              domain.PipelineStatusPending,
		Definition:          def,
		Metadata:            in.Metadata,
		CreatedAt:           time.Now().UTC(),
		CreatedBy:           strings.TrimSpace(in.Actor),
	}
	if err := s.pipelines.Create(ctx, pipeline); err != nil {
		return domain.Pipeline{}, err
	}

	compileStart := time.Now()
	workflow, err := s.builder.Build(pipeline.ID, def.Name, def.Stages, namespace, def.MaxRetries, def.Entrypoint)
	if s.metrics != nil {
		s.metrics.CompileDuration.Observe(time.Since(compileStart).Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			var internal *argo.InternalError
			if errors.As(err, &internal) {
				s.metrics.InternalInvariants.Inc()
			}
		}
		if updateErr := s.pipelines.UpdateStatus(ctx, projectID, pipeline.ID, domain.PipelineStatusSubmitFailed); updateErr != nil {
			s.logger.Error("mark pipeline submit_failed", "pipeline_id", pipeline.ID, "error", updateErr.Error())
		}
		return domain.Pipeline{}, err
	}

	if err := s.orch.Submit(ctx, namespace, workflow); err != nil {
		s.countSubmission("submit_failed")
		s.countAdapterError(s.orch.Kind())
		s.logger.Warn("workflow submission failed",
			"pipeline_id", pipeline.ID,
			"workflow_name", workflow.Metadata.Name,
			"error", err.Error(),
		)
		if updateErr := s.pipelines.UpdateStatus(ctx, projectID, pipeline.ID, domain.PipelineStatusSubmitFailed); updateErr != nil {
			s.logger.Error("mark pipeline submit_failed", "pipeline_id", pipeline.ID, "error", updateErr.Error())
		}
		pipeline.Status = domain.PipelineStatusSubmitFailed
		return pipeline, nil
	}

	if err := s.pipelines.UpdateSubmission(ctx, projectID, pipeline.ID, domain.PipelineStatusSubmitted, workflow.Metadata.Name); err != nil {
		return domain.Pipeline{}, err
	}
	s.countSubmission("submitted")
	pipeline.Status = domain.PipelineStatusSubmitted
	pipeline.WorkflowName = workflow.Metadata.Name
	s.logger.Info("pipeline submitted",
		"pipeline_id", pipeline.ID,
		"project_id", projectID,
		"workflow_name", workflow.Metadata.Name,
		"stages", len(def.Stages),
	)
	return pipeline, nil
}

func (s *Service) Get(ctx context.Context, projectID, id string) (domain.Pipeline, error) {
	return s.pipelines.Get(ctx, projectID, id)
}

func (s *Service) List(ctx context.Context, filter repo.PipelineFilter) ([]domain.Pipeline, error) {
	return s.pipelines.List(ctx, filter)
}

// Refresh pulls the orchestrator's view of the workflow and folds it into
// the local status. Terminal rows are returned as-is.
func (s *Service) Refresh(ctx context.Context, projectID, id string) (domain.Pipeline, error) {
	unlock := s.lock(id)
	defer unlock()

	pipeline, err := s.pipelines.Get(ctx, projectID, id)
	if err != nil {
		return domain.Pipeline{}, err
	}
	if pipeline.Status.Terminal() || strings.TrimSpace(pipeline.WorkflowName) == "" {
		return pipeline, nil
	}

	state, err := s.orch.Status(ctx, pipeline.Namespace, pipeline.WorkflowName)
	if err != nil {
		if errors.Is(err, orchestrator.ErrWorkflowNotFound) {
			return pipeline, nil
		}
		s.countAdapterError(s.orch.Kind())
		return domain.Pipeline{}, err
	}

	next := statusFromPhase(state.Phase)
	if next == "" || next == pipeline.Status {
		return pipeline, nil
	}
	if err := domain.ValidatePipelineTransition(pipeline.Status, next); err != nil {
		s.logger.Warn("ignoring out-of-order workflow phase",
			"pipeline_id", pipeline.ID,
			"from", string(pipeline.Status),
			"to", string(next),
		)
		return pipeline, nil
	}
	if err := s.pipelines.UpdateStatus(ctx, projectID, id, next); err != nil {
		return domain.Pipeline{}, err
	}
	pipeline.Status = next
	return pipeline, nil
}

// Cancel marks the pipeline cancelled and best-effort stops the workflow.
func (s *Service) Cancel(ctx context.Context, projectID, id string) (domain.Pipeline, error) {
	unlock := s.lock(id)
	defer unlock()

	pipeline, err := s.pipelines.Get(ctx, projectID, id)
	if err != nil {
		return domain.Pipeline{}, err
	}
	if err := domain.ValidatePipelineTransition(pipeline.Status, domain.PipelineStatusCancelled); err != nil {
		return domain.Pipeline{}, err
	}

	if strings.TrimSpace(pipeline.WorkflowName) != "" {
		if err := s.orch.Stop(ctx, pipeline.Namespace, pipeline.WorkflowName); err != nil && !errors.Is(err, orchestrator.ErrWorkflowNotFound) {
			s.countAdapterError(s.orch.Kind())
			s.logger.Warn("workflow stop failed",
				"pipeline_id", pipeline.ID,
				"workflow_name", pipeline.WorkflowName,
				"error", err.Error(),
			)
		}
	}

	if err := s.pipelines.UpdateStatus(ctx, projectID, id, domain.PipelineStatusCancelled); err != nil {
		return domain.Pipeline{}, err
	}
	pipeline.Status = domain.PipelineStatusCancelled
	return pipeline, nil
}

// Retry resubmits a pipeline stuck in submit_failed.
func (s *Service) Retry(ctx context.Context, projectID, id string) (domain.Pipeline, error) {
	unlock := s.lock(id)
	defer unlock()

	pipeline, err := s.pipelines.Get(ctx, projectID, id)
	if err != nil {
		return domain.Pipeline{}, err
	}
	if pipeline.Status != domain.PipelineStatusSubmitFailed {
		return domain.Pipeline{}, domain.ValidatePipelineTransition(pipeline.Status, domain.PipelineStatusSubmitted)
	}

	def := pipeline.Definition
	workflow, err := s.builder.Build(pipeline.ID, def.Name, def.Stages, pipeline.Namespace, def.MaxRetries, def.Entrypoint)
	if err != nil {
		if s.metrics != nil {
			var internal *argo.InternalError
			if errors.As(err, &internal) {
				s.metrics.InternalInvariants.Inc()
			}
		}
		return domain.Pipeline{}, err
	}
	if err := s.orch.Submit(ctx, pipeline.Namespace, workflow); err != nil {
		s.countSubmission("submit_failed")
		s.countAdapterError(s.orch.Kind())
		return domain.Pipeline{}, err
	}
	if err := s.pipelines.UpdateSubmission(ctx, projectID, id, domain.PipelineStatusSubmitted, workflow.Metadata.Name); err != nil {
		return domain.Pipeline{}, err
	}
	s.countSubmission("submitted")
	pipeline.Status = domain.PipelineStatusSubmitted
	pipeline.WorkflowName = workflow.Metadata.Name
	return pipeline, nil
}

// Manifest recompiles the stored definition into a workflow manifest for
// export. The compile is deterministic, so the result matches what was
// submitted.
func (s *Service) Manifest(ctx context.Context, projectID, id string) (*argo.Workflow, error) {
	pipeline, err := s.pipelines.Get(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	def := pipeline.Definition
	return s.builder.Build(pipeline.ID, def.Name, def.Stages, pipeline.Namespace, def.MaxRetries, def.Entrypoint)
}

func statusFromPhase(phase string) domain.PipelineStatus {
	switch strings.ToLower(strings.TrimSpace(phase)) {
	case "pending":
		return domain.PipelineStatusSubmitted
	case "running":
		return domain.PipelineStatusRunning
	case "succeeded":
		return domain.PipelineStatusSucceeded
	case "failed", "error":
		return domain.PipelineStatusFailed
	default:
		return ""
	}
}

func (s *Service) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Service) countSubmission(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.PipelineSubmissions.WithLabelValues(outcome).Inc()
}

func (s *Service) countValidationFailure(category string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ValidationFailures.WithLabelValues(category).Inc()
}

func (s *Service) countAdapterError(adapter string) {
	if s.metrics == nil {
		return
	}
	s.metrics.AdapterErrors.WithLabelValues(adapter).Inc()
}
