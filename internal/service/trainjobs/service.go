// Package trainjobs accepts training submissions after running them
// through the compatibility rule set against the catalog.
package trainjobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/modelplane-labs/modelplane-go/internal/compat"
	"github.com/modelplane-labs/modelplane-go/internal/domain"
	"github.com/modelplane-labs/modelplane-go/internal/platform/metrics"
	"github.com/modelplane-labs/modelplane-go/internal/repo"
)

// Tracker records accepted jobs in an experiment tracking system. Tracking
// is best-effort; a tracker failure never rejects a valid submission.
type Tracker interface {
	CreateRun(ctx context.Context, runName string, tags map[string]string) (string, error)
	CloseRun(ctx context.Context, runID string, status string) error
}

type Service struct {
	logger   *slog.Logger
	jobs     repo.TrainJobRepository
	models   repo.ModelRepository
	datasets repo.DatasetRepository
	tracker  Tracker
	metrics  *metrics.Metrics
}

func New(logger *slog.Logger, jobRepo repo.TrainJobRepository, modelRepo repo.ModelRepository, datasetRepo repo.DatasetRepository, tracker Tracker, m *metrics.Metrics) *Service {
	if logger == nil || jobRepo == nil || modelRepo == nil || datasetRepo == nil {
		return nil
	}
	return &Service{
		logger:   logger,
		jobs:     jobRepo,
		models:   modelRepo,
		datasets: datasetRepo,
		tracker:  tracker,
		metrics:  m,
	}
}

type SubmitInput struct {
	ProjectID string
	Actor     string
	Metadata  domain.Metadata
	Spec      domain.TrainJobSpec
}

// Submit validates the spec against the compatibility rules and the
// catalog, then persists it as accepted. Accepted specs are immutable;
// corrections are new submissions.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (domain.TrainJob, error) {
	projectID := strings.TrimSpace(in.ProjectID)
	if projectID == "" {
		return domain.TrainJob{}, errors.New("project id is required")
	}

	spec := in.Spec
	spec.ModelFamily = strings.ToLower(strings.TrimSpace(spec.ModelFamily))

	// The catalog's recorded dataset type wins over the submitted one.
	if version, err := s.datasets.GetDatasetVersionByName(ctx, projectID, spec.Dataset.Name, spec.Dataset.Version); err == nil {
		spec.Dataset.Type = version.Type
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.TrainJob{}, err
	}

	baseModelMaxSeqLen, err := s.resolveBaseModelMaxSeqLen(ctx, projectID, spec.BaseModel)
	if err != nil {
		return domain.TrainJob{}, err
	}

	if err := compat.ValidateTrainJobSpec(spec, baseModelMaxSeqLen); err != nil {
		s.countOutcome("rejected")
		s.countValidationFailure(err)
		return domain.TrainJob{}, err
	}

	job := domain.TrainJob{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Spec:      spec,
		Status:    domain.TrainJobStatusAccepted,
		Metadata:  in.Metadata,
		CreatedAt: time.Now().UTC(),
		CreatedBy: strings.TrimSpace(in.Actor),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return domain.TrainJob{}, err
	}
	s.countOutcome("accepted")

	if s.tracker != nil {
		runName := fmt.Sprintf("%s %s", strings.ToLower(string(spec.JobType)), spec.ModelFamily)
		runID, trackErr := s.tracker.CreateRun(ctx, runName, map[string]string{
			"job_id":       job.ID,
			"project_id":   projectID,
			"job_type":     string(spec.JobType),
			"model_family": spec.ModelFamily,
		})
		if trackErr != nil {
			s.countAdapterError("mlflow")
			s.logger.Warn("tracking run creation failed", "job_id", job.ID, "error", trackErr.Error())
		} else if err := s.jobs.UpdateTrackingRun(ctx, projectID, job.ID, runID); err != nil {
			s.logger.Warn("persist tracking run failed", "job_id", job.ID, "error", err.Error())
		} else {
			job.TrackingRun = runID
		}
	}

	s.logger.Info("train job accepted",
		"job_id", job.ID,
		"project_id", projectID,
		"job_type", string(spec.JobType),
		"model_family", spec.ModelFamily,
	)
	return job, nil
}

func (s *Service) Get(ctx context.Context, projectID, id string) (domain.TrainJob, error) {
	return s.jobs.Get(ctx, projectID, id)
}

func (s *Service) List(ctx context.Context, filter repo.TrainJobFilter) ([]domain.TrainJob, error) {
	return s.jobs.List(ctx, filter)
}

// UpdateStatus moves a job through its lifecycle. Terminal statuses close
// the tracking run best-effort.
func (s *Service) UpdateStatus(ctx context.Context, projectID, id string, status domain.TrainJobStatus) error {
	job, err := s.jobs.Get(ctx, projectID, id)
	if err != nil {
		return err
	}
	if err := s.jobs.UpdateStatus(ctx, projectID, id, status); err != nil {
		return err
	}
	if s.tracker == nil || strings.TrimSpace(job.TrackingRun) == "" {
		return nil
	}
	runStatus := ""
	switch status {
	case domain.TrainJobStatusSucceeded:
		runStatus = "FINISHED"
	case domain.TrainJobStatusFailed:
		runStatus = "FAILED"
	}
	if runStatus == "" {
		return nil
	}
	if err := s.tracker.CloseRun(ctx, job.TrackingRun, runStatus); err != nil {
		s.countAdapterError("mlflow")
		s.logger.Warn("close tracking run failed", "job_id", id, "run_id", job.TrackingRun, "error", err.Error())
	}
	return nil
}

// Revalidate re-runs the compatibility rules for a stored job against the
// current catalog. Useful after rule or catalog changes.
func (s *Service) Revalidate(ctx context.Context, projectID, id string) error {
	job, err := s.jobs.Get(ctx, projectID, id)
	if err != nil {
		return err
	}
	baseModelMaxSeqLen, err := s.resolveBaseModelMaxSeqLen(ctx, projectID, job.Spec.BaseModel)
	if err != nil {
		return err
	}
	return compat.ValidateTrainJobSpec(job.Spec, baseModelMaxSeqLen)
}

func (s *Service) resolveBaseModelMaxSeqLen(ctx context.Context, projectID string, ref *domain.ModelRef) (*int, error) {
	if ref == nil {
		return nil, nil
	}
	model, err := s.models.GetByNameVersion(ctx, projectID, ref.Name, ref.Version)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if model.MaxPositionEmbeddings <= 0 {
		return nil, nil
	}
	maxSeqLen := model.MaxPositionEmbeddings
	return &maxSeqLen, nil
}

func (s *Service) countOutcome(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.TrainJobSubmissions.WithLabelValues(outcome).Inc()
}

func (s *Service) countValidationFailure(err error) {
	if s.metrics == nil {
		return
	}
	var ruleErr *compat.RuleError
	if errors.As(err, &ruleErr) {
		s.metrics.ValidationFailures.WithLabelValues(ruleErr.Rule).Inc()
		return
	}
	s.metrics.ValidationFailures.WithLabelValues("spec_incompatible").Inc()
}

func (s *Service) countAdapterError(adapter string) {
	if s.metrics == nil {
		return
	}
	s.metrics.AdapterErrors.WithLabelValues(adapter).Inc()
}
