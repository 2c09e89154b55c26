package trainjobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/modelplane-labs/modelplane-go/internal/compat"
	"github.com/modelplane-labs/modelplane-go/internal/domain"
	"github.com/modelplane-labs/modelplane-go/internal/repo"
)

type fakeTrainJobRepo struct {
	rows map[string]domain.TrainJob
}

func newFakeTrainJobRepo() *fakeTrainJobRepo {
	return &fakeTrainJobRepo{rows: make(map[string]domain.TrainJob)}
}

func (r *fakeTrainJobRepo) Create(_ context.Context, job domain.TrainJob) error {
	r.rows[job.ID] = job
	return nil
}

func (r *fakeTrainJobRepo) Get(_ context.Context, _, id string) (domain.TrainJob, error) {
	job, ok := r.rows[id]
	if !ok {
		return domain.TrainJob{}, repo.ErrNotFound
	}
	return job, nil
}

func (r *fakeTrainJobRepo) List(_ context.Context, _ repo.TrainJobFilter) ([]domain.TrainJob, error) {
	out := make([]domain.TrainJob, 0, len(r.rows))
	for _, job := range r.rows {
		out = append(out, job)
	}
	return out, nil
}

func (r *fakeTrainJobRepo) UpdateStatus(_ context.Context, _, id string, status domain.TrainJobStatus) error {
	job, ok := r.rows[id]
	if !ok {
		return repo.ErrNotFound
	}
	job.Status = status
	r.rows[id] = job
	return nil
}

func (r *fakeTrainJobRepo) UpdateTrackingRun(_ context.Context, _, id string, trackingRun string) error {
	job, ok := r.rows[id]
	if !ok {
		return repo.ErrNotFound
	}
	job.TrackingRun = trackingRun
	r.rows[id] = job
	return nil
}

type fakeModelRepo struct {
	models map[string]domain.Model
}

func newFakeModelRepo(models ...domain.Model) *fakeModelRepo {
	r := &fakeModelRepo{models: make(map[string]domain.Model)}
	for _, model := range models {
		r.models[model.Name+":"+model.Version] = model
	}
	return r
}

func (r *fakeModelRepo) Create(_ context.Context, model domain.Model) error {
	r.models[model.Name+":"+model.Version] = model
	return nil
}

func (r *fakeModelRepo) Get(_ context.Context, _, _ string) (domain.Model, error) {
	return domain.Model{}, repo.ErrNotFound
}

func (r *fakeModelRepo) GetByNameVersion(_ context.Context, _, name, version string) (domain.Model, error) {
	model, ok := r.models[name+":"+version]
	if !ok {
		return domain.Model{}, repo.ErrNotFound
	}
	return model, nil
}

func (r *fakeModelRepo) List(_ context.Context, _ repo.ModelFilter) ([]domain.Model, error) {
	return nil, nil
}

func (r *fakeModelRepo) UpdateStatus(_ context.Context, _, _ string, _ domain.ModelStatus) error {
	return nil
}

type fakeDatasetRepo struct {
	versions map[string]domain.DatasetVersion
}

func newFakeDatasetRepo(versions ...domain.DatasetVersion) *fakeDatasetRepo {
	r := &fakeDatasetRepo{versions: make(map[string]domain.DatasetVersion)}
	for _, version := range versions {
		r.versions[version.DatasetID+":"+version.Version] = version
	}
	return r
}

func (r *fakeDatasetRepo) CreateDataset(_ context.Context, _ domain.Dataset) error { return nil }

func (r *fakeDatasetRepo) GetDataset(_ context.Context, _, _ string) (domain.Dataset, error) {
	return domain.Dataset{}, repo.ErrNotFound
}

func (r *fakeDatasetRepo) ListDatasets(_ context.Context, _ repo.DatasetFilter) ([]domain.Dataset, error) {
	return nil, nil
}

func (r *fakeDatasetRepo) CreateDatasetVersion(_ context.Context, _ domain.DatasetVersion) error {
	return nil
}

func (r *fakeDatasetRepo) GetDatasetVersion(_ context.Context, _, _ string) (domain.DatasetVersion, error) {
	return domain.DatasetVersion{}, repo.ErrNotFound
}

func (r *fakeDatasetRepo) GetDatasetVersionByName(_ context.Context, _, datasetName, version string) (domain.DatasetVersion, error) {
	v, ok := r.versions[datasetName+":"+version]
	if !ok {
		return domain.DatasetVersion{}, repo.ErrNotFound
	}
	return v, nil
}

func (r *fakeDatasetRepo) ListDatasetVersions(_ context.Context, _ repo.DatasetVersionFilter) ([]domain.DatasetVersion, error) {
	return nil, nil
}

type fakeTracker struct {
	runID  string
	err    error
	calls  int
	closed map[string]string
}

func (t *fakeTracker) CreateRun(_ context.Context, _ string, _ map[string]string) (string, error) {
	t.calls++
	if t.err != nil {
		return "", t.err
	}
	return t.runID, nil
}

func (t *fakeTracker) CloseRun(_ context.Context, runID string, status string) error {
	if t.closed == nil {
		t.closed = make(map[string]string)
	}
	t.closed[runID] = status
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validSpec() domain.TrainJobSpec {
	return domain.TrainJobSpec{
		JobType:     domain.JobTypeSFT,
		ModelFamily: "llama",
		Dataset:     domain.DatasetRef{Name: "support-chats", Version: "v3", Type: domain.DatasetTypeSFTPair},
		BaseModel:   &domain.ModelRef{Name: "llama-3-8b", Version: "1"},
		Hyperparams: domain.Hyperparams{LearningRate: 2e-5, BatchSize: 16, NumEpochs: 3, MaxSeqLen: 4096},
		Method:      domain.TrainMethodLoRA,
		Resources:   domain.TrainResources{GPUs: 4, Nodes: 1},
	}
}

func TestSubmitAcceptsAndTracks(t *testing.T) {
	jobs := newFakeTrainJobRepo()
	tracker := &fakeTracker{runID: "run-42"}
	svc := New(discardLogger(), jobs, newFakeModelRepo(), newFakeDatasetRepo(), tracker, nil)

	job, err := svc.Submit(context.Background(), SubmitInput{
		ProjectID: "proj-1",
		Actor:     "alice",
		Spec:      validSpec(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != domain.TrainJobStatusAccepted {
		t.Fatalf("expected status accepted, got %s", job.Status)
	}
	if job.TrackingRun != "run-42" {
		t.Fatalf("expected tracking run run-42, got %q", job.TrackingRun)
	}
	if tracker.calls != 1 {
		t.Fatalf("expected one tracker call, got %d", tracker.calls)
	}
	if stored := jobs.rows[job.ID]; stored.TrackingRun != "run-42" {
		t.Fatalf("tracking run not persisted: %+v", stored)
	}
}

func TestSubmitToleratesTrackerFailure(t *testing.T) {
	jobs := newFakeTrainJobRepo()
	tracker := &fakeTracker{err: errors.New("mlflow unreachable")}
	svc := New(discardLogger(), jobs, newFakeModelRepo(), newFakeDatasetRepo(), tracker, nil)

	job, err := svc.Submit(context.Background(), SubmitInput{ProjectID: "proj-1", Spec: validSpec()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != domain.TrainJobStatusAccepted {
		t.Fatalf("expected status accepted, got %s", job.Status)
	}
	if job.TrackingRun != "" {
		t.Fatalf("expected empty tracking run, got %q", job.TrackingRun)
	}
}

func TestSubmitCatalogDatasetTypeWins(t *testing.T) {
	// The submission claims sft_pair but the catalog records the version
	// as rag_qa, which SFT cannot train on.
	datasets := newFakeDatasetRepo(domain.DatasetVersion{
		DatasetID: "support-chats",
		Version:   "v3",
		Type:      domain.DatasetTypeRAGQA,
	})
	svc := New(discardLogger(), newFakeTrainJobRepo(), newFakeModelRepo(), datasets, nil, nil)

	_, err := svc.Submit(context.Background(), SubmitInput{ProjectID: "proj-1", Spec: validSpec()})
	if err == nil {
		t.Fatalf("expected rejection")
	}
	var ruleErr *compat.RuleError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected RuleError, got %T", err)
	}
	if ruleErr.Rule != "dataset_compatibility" {
		t.Fatalf("expected dataset_compatibility rule, got %s", ruleErr.Rule)
	}
}

func TestSubmitCapsSeqLenByBaseModel(t *testing.T) {
	models := newFakeModelRepo(domain.Model{
		ID:                    "model-1",
		ProjectID:             "proj-1",
		Name:                  "llama-3-8b",
		Version:               "1",
		Family:                "llama",
		MaxPositionEmbeddings: 2048,
		Status:                domain.ModelStatusApproved,
	})
	svc := New(discardLogger(), newFakeTrainJobRepo(), models, newFakeDatasetRepo(), nil, nil)

	spec := validSpec()
	spec.Hyperparams.MaxSeqLen = 4096
	_, err := svc.Submit(context.Background(), SubmitInput{ProjectID: "proj-1", Spec: spec})
	if err == nil {
		t.Fatalf("expected rejection")
	}
	var ruleErr *compat.RuleError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected RuleError, got %T", err)
	}
	if ruleErr.Rule != "sequence_length" {
		t.Fatalf("expected sequence_length rule, got %s", ruleErr.Rule)
	}
}

func TestSubmitUnknownBaseModelSkipsCap(t *testing.T) {
	svc := New(discardLogger(), newFakeTrainJobRepo(), newFakeModelRepo(), newFakeDatasetRepo(), nil, nil)

	spec := validSpec()
	spec.Hyperparams.MaxSeqLen = 131072
	job, err := svc.Submit(context.Background(), SubmitInput{ProjectID: "proj-1", Spec: spec})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != domain.TrainJobStatusAccepted {
		t.Fatalf("expected status accepted, got %s", job.Status)
	}
}

func TestUpdateStatusClosesTrackingRun(t *testing.T) {
	jobs := newFakeTrainJobRepo()
	tracker := &fakeTracker{runID: "run-42"}
	svc := New(discardLogger(), jobs, newFakeModelRepo(), newFakeDatasetRepo(), tracker, nil)

	job, err := svc.Submit(context.Background(), SubmitInput{ProjectID: "proj-1", Spec: validSpec()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.UpdateStatus(context.Background(), "proj-1", job.ID, domain.TrainJobStatusSucceeded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tracker.closed["run-42"]; got != "FINISHED" {
		t.Fatalf("expected run closed FINISHED, got %q", got)
	}
}

func TestRevalidateUsesStoredSpec(t *testing.T) {
	jobs := newFakeTrainJobRepo()
	models := newFakeModelRepo()
	svc := New(discardLogger(), jobs, models, newFakeDatasetRepo(), nil, nil)

	job, err := svc.Submit(context.Background(), SubmitInput{ProjectID: "proj-1", Spec: validSpec()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Revalidate(context.Background(), "proj-1", job.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Cataloging the base model with a small context window makes the
	// stored spec invalid on the next pass.
	if err := models.Create(context.Background(), domain.Model{
		Name:                  "llama-3-8b",
		Version:               "1",
		MaxPositionEmbeddings: 1024,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Revalidate(context.Background(), "proj-1", job.ID); err == nil {
		t.Fatalf("expected revalidation failure")
	}
}
