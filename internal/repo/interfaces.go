package repo

import (
	"context"
	"errors"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type PipelineFilter struct {
	ProjectID string
	Status    domain.PipelineStatus
	Limit     int
}

type TrainJobFilter struct {
	ProjectID string
	JobType   domain.JobType
	Status    domain.TrainJobStatus
	Limit     int
}

type DeploymentFilter struct {
	ProjectID string
	Status    domain.DeploymentStatus
	Limit     int
}

type ModelFilter struct {
	ProjectID string
	Name      string
	Family    string
	Status    domain.ModelStatus
	Limit     int
}

type DatasetFilter struct {
	ProjectID string
	Name      string
	Limit     int
}

type DatasetVersionFilter struct {
	ProjectID string
	DatasetID string
	Limit     int
}

// PipelineRepository manages pipeline mirror rows.
type PipelineRepository interface {
	Create(ctx context.Context, pipeline domain.Pipeline) error
	Get(ctx context.Context, projectID, id string) (domain.Pipeline, error)
	List(ctx context.Context, filter PipelineFilter) ([]domain.Pipeline, error)
	UpdateStatus(ctx context.Context, projectID, id string, status domain.PipelineStatus) error
	UpdateSubmission(ctx context.Context, projectID, id string, status domain.PipelineStatus, workflowName string) error
}

// TrainJobRepository manages accepted training submissions.
type TrainJobRepository interface {
	Create(ctx context.Context, job domain.TrainJob) error
	Get(ctx context.Context, projectID, id string) (domain.TrainJob, error)
	List(ctx context.Context, filter TrainJobFilter) ([]domain.TrainJob, error)
	UpdateStatus(ctx context.Context, projectID, id string, status domain.TrainJobStatus) error
	UpdateTrackingRun(ctx context.Context, projectID, id string, trackingRun string) error
}

// DeploymentRepository manages accepted serving submissions.
type DeploymentRepository interface {
	Create(ctx context.Context, deployment domain.Deployment) error
	Get(ctx context.Context, projectID, id string) (domain.Deployment, error)
	List(ctx context.Context, filter DeploymentFilter) ([]domain.Deployment, error)
	UpdateStatus(ctx context.Context, projectID, id string, status domain.DeploymentStatus, endpointURL string) error
}

// ModelRepository manages model catalog entries.
type ModelRepository interface {
	Create(ctx context.Context, model domain.Model) error
	Get(ctx context.Context, projectID, id string) (domain.Model, error)
	GetByNameVersion(ctx context.Context, projectID, name, version string) (domain.Model, error)
	List(ctx context.Context, filter ModelFilter) ([]domain.Model, error)
	UpdateStatus(ctx context.Context, projectID, id string, status domain.ModelStatus) error
}

// DatasetRepository manages datasets and immutable versions.
type DatasetRepository interface {
	CreateDataset(ctx context.Context, dataset domain.Dataset) error
	GetDataset(ctx context.Context, projectID, id string) (domain.Dataset, error)
	ListDatasets(ctx context.Context, filter DatasetFilter) ([]domain.Dataset, error)

	CreateDatasetVersion(ctx context.Context, version domain.DatasetVersion) error
	GetDatasetVersion(ctx context.Context, projectID, id string) (domain.DatasetVersion, error)
	GetDatasetVersionByName(ctx context.Context, projectID, datasetName, version string) (domain.DatasetVersion, error)
	ListDatasetVersions(ctx context.Context, filter DatasetVersionFilter) ([]domain.DatasetVersion, error)
}
