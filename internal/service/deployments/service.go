// Package deployments accepts serving submissions, validates them against
// the originating training job and the catalog, and drives the serving
// adapter.
package deployments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modelplane-labs/modelplane-go/internal/adapters/kserve"
	"github.com/modelplane-labs/modelplane-go/internal/compat"
	"github.com/modelplane-labs/modelplane-go/internal/domain"
	"github.com/modelplane-labs/modelplane-go/internal/platform/metrics"
	"github.com/modelplane-labs/modelplane-go/internal/repo"
)

// Deployer is the serving backend. Deployment to the backend is
// best-effort; a backend failure keeps the accepted row retryable.
type Deployer interface {
	Deploy(ctx context.Context, dep domain.Deployment, serviceName string, storageURI string) error
	Get(ctx context.Context, serviceName string) (kserve.InferenceService, error)
	Retire(ctx context.Context, serviceName string) error
}

type Service struct {
	logger       *slog.Logger
	deployments  repo.DeploymentRepository
	trainJobs    repo.TrainJobRepository
	models       repo.ModelRepository
	deployer     Deployer
	metrics      *metrics.Metrics
	modelsBucket string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(logger *slog.Logger, deploymentRepo repo.DeploymentRepository, trainJobRepo repo.TrainJobRepository, modelRepo repo.ModelRepository, deployer Deployer, m *metrics.Metrics, modelsBucket string) *Service {
	if logger == nil || deploymentRepo == nil || trainJobRepo == nil || modelRepo == nil {
		return nil
	}
	modelsBucket = strings.TrimSpace(modelsBucket)
	if modelsBucket == "" {
		modelsBucket = "models"
	}
	return &Service{
		logger:       logger,
		deployments:  deploymentRepo,
		trainJobs:    trainJobRepo,
		models:       modelRepo,
		deployer:     deployer,
		metrics:      m,
		modelsBucket: modelsBucket,
		locks:        make(map[string]*sync.Mutex),
	}
}

type CreateInput struct {
	ProjectID  string
	Actor      string
	TrainJobID string
	Metadata   domain.Metadata
	Spec       domain.DeploymentSpec
}

// Create validates a serving submission and persists it as accepted, then
// best-effort hands it to the serving backend. The originating training
// job, when referenced, pins the job type and model family.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Deployment, error) {
	projectID := strings.TrimSpace(in.ProjectID)
	if projectID == "" {
		return domain.Deployment{}, errors.New("project id is required")
	}

	spec := in.Spec
	spec.ModelFamily = strings.ToLower(strings.TrimSpace(spec.ModelFamily))

	trainJobID := strings.TrimSpace(in.TrainJobID)
	trainingFamily := ""
	if trainJobID != "" {
		job, err := s.trainJobs.Get(ctx, projectID, trainJobID)
		if err != nil {
			return domain.Deployment{}, err
		}
		trainingFamily = job.Spec.ModelFamily
		spec.JobType = job.Spec.JobType
	}

	model, modelKnown, err := s.lookupModel(ctx, projectID, spec.Model)
	if err != nil {
		return domain.Deployment{}, err
	}
	var modelMaxSeqLen *int
	if modelKnown && model.MaxPositionEmbeddings > 0 {
		maxSeqLen := model.MaxPositionEmbeddings
		modelMaxSeqLen = &maxSeqLen
	}

	if err := compat.ValidateDeploymentSpec(spec, trainingFamily, modelMaxSeqLen); err != nil {
		s.countCreation("rejected")
		s.countValidationFailure(err)
		return domain.Deployment{}, err
	}

	deployment := domain.Deployment{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		TrainJobID: trainJobID,
		Spec:       spec,
		Status:     domain.DeploymentStatusAccepted,
		Metadata:   in.Metadata,
		CreatedAt:  time.Now().UTC(),
		CreatedBy:  strings.TrimSpace(in.Actor),
	}
	if err := s.deployments.Create(ctx, deployment); err != nil {
		return domain.Deployment{}, err
	}
	s.countCreation("accepted")

	if s.deployer != nil && modelKnown && strings.TrimSpace(model.ArtifactKey) != "" {
		storageURI := fmt.Sprintf("s3://%s/%s", s.modelsBucket, strings.TrimSpace(model.ArtifactKey))
		serviceName := ServiceName(spec.Model.Name, deployment.ID)
		if err := s.deployer.Deploy(ctx, deployment, serviceName, storageURI); err != nil {
			s.countAdapterError("kserve")
			s.logger.Warn("inference service creation failed",
				"deployment_id", deployment.ID,
				"service_name", serviceName,
				"error", err.Error(),
			)
			if updateErr := s.deployments.UpdateStatus(ctx, projectID, deployment.ID, domain.DeploymentStatusDeployFailed, ""); updateErr != nil {
				s.logger.Error("mark deployment deploy_failed", "deployment_id", deployment.ID, "error", updateErr.Error())
			}
			deployment.Status = domain.DeploymentStatusDeployFailed
			return deployment, nil
		}
		if err := s.deployments.UpdateStatus(ctx, projectID, deployment.ID, domain.DeploymentStatusDeploying, ""); err != nil {
			return domain.Deployment{}, err
		}
		deployment.Status = domain.DeploymentStatusDeploying
	} else if s.deployer != nil {
		s.logger.Warn("deployment accepted without a cataloged artifact",
			"deployment_id", deployment.ID,
			"model", spec.Model.Name,
			"version", spec.Model.Version,
		)
	}

	s.logger.Info("deployment created",
		"deployment_id", deployment.ID,
		"project_id", projectID,
		"serve_target", string(spec.ServeTarget),
		"status", string(deployment.Status),
	)
	return deployment, nil
}

func (s *Service) Get(ctx context.Context, projectID, id string) (domain.Deployment, error) {
	return s.deployments.Get(ctx, projectID, id)
}

func (s *Service) List(ctx context.Context, filter repo.DeploymentFilter) ([]domain.Deployment, error) {
	return s.deployments.List(ctx, filter)
}

// Refresh folds the serving backend's readiness into the local status. Rows
// that are not deploying are returned as-is.
func (s *Service) Refresh(ctx context.Context, projectID, id string) (domain.Deployment, error) {
	unlock := s.lock(id)
	defer unlock()

	deployment, err := s.deployments.Get(ctx, projectID, id)
	if err != nil {
		return domain.Deployment{}, err
	}
	if deployment.Status != domain.DeploymentStatusDeploying || s.deployer == nil {
		return deployment, nil
	}

	serviceName := ServiceName(deployment.Spec.Model.Name, deployment.ID)
	isvc, err := s.deployer.Get(ctx, serviceName)
	if err != nil {
		if errors.Is(err, kserve.ErrServiceNotFound) {
			return deployment, nil
		}
		s.countAdapterError("kserve")
		return domain.Deployment{}, err
	}
	if !isvc.Ready() {
		return deployment, nil
	}

	endpointURL := strings.TrimSpace(isvc.Status.URL)
	if err := s.deployments.UpdateStatus(ctx, projectID, id, domain.DeploymentStatusReady, endpointURL); err != nil {
		return domain.Deployment{}, err
	}
	deployment.Status = domain.DeploymentStatusReady
	deployment.EndpointURL = endpointURL
	s.logger.Info("deployment ready", "deployment_id", deployment.ID, "endpoint_url", endpointURL)
	return deployment, nil
}

// Retire marks the deployment retired and best-effort removes its
// inference service.
func (s *Service) Retire(ctx context.Context, projectID, id string) (domain.Deployment, error) {
	unlock := s.lock(id)
	defer unlock()

	deployment, err := s.deployments.Get(ctx, projectID, id)
	if err != nil {
		return domain.Deployment{}, err
	}
	if deployment.Status == domain.DeploymentStatusRetired {
		return deployment, nil
	}

	if s.deployer != nil {
		serviceName := ServiceName(deployment.Spec.Model.Name, deployment.ID)
		if err := s.deployer.Retire(ctx, serviceName); err != nil && !errors.Is(err, kserve.ErrServiceNotFound) {
			s.countAdapterError("kserve")
			s.logger.Warn("inference service removal failed",
				"deployment_id", deployment.ID,
				"service_name", serviceName,
				"error", err.Error(),
			)
		}
	}

	if err := s.deployments.UpdateStatus(ctx, projectID, id, domain.DeploymentStatusRetired, ""); err != nil {
		return domain.Deployment{}, err
	}
	deployment.Status = domain.DeploymentStatusRetired
	return deployment, nil
}

func (s *Service) lookupModel(ctx context.Context, projectID string, ref domain.ModelRef) (domain.Model, bool, error) {
	if strings.TrimSpace(ref.Name) == "" {
		return domain.Model{}, false, nil
	}
	model, err := s.models.GetByNameVersion(ctx, projectID, ref.Name, ref.Version)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Model{}, false, nil
		}
		return domain.Model{}, false, err
	}
	return model, true, nil
}

// Kubernetes resource names are capped at 63 characters.
const maxServiceNameLen = 63

// ServiceName derives a deterministic DNS-safe inference service name from
// the model name and deployment id.
func ServiceName(modelName, deploymentID string) string {
	slug := slugify(modelName)
	if slug == "" {
		slug = "deployment"
	}

	sum := sha256.Sum256([]byte(strings.TrimSpace(deploymentID)))
	suffix := hex.EncodeToString(sum[:])[:8]

	name := slug + "-" + suffix
	if len(name) > maxServiceNameLen {
		name = name[:maxServiceNameLen]
	}
	return strings.Trim(name, "-")
}

func slugify(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '_', r == '.':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
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

func (s *Service) countCreation(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.DeploymentCreations.WithLabelValues(outcome).Inc()
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
