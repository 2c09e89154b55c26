package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelplane-labs/modelplane-go/internal/adapters/kserve"
	"github.com/modelplane-labs/modelplane-go/internal/adapters/orchestrator"
	"github.com/modelplane-labs/modelplane-go/internal/domain"
	"github.com/modelplane-labs/modelplane-go/internal/pipeline/argo"
	"github.com/modelplane-labs/modelplane-go/internal/platform/auth"
	"github.com/modelplane-labs/modelplane-go/internal/platform/objectstore"
	"github.com/modelplane-labs/modelplane-go/internal/repo"
	deploysvc "github.com/modelplane-labs/modelplane-go/internal/service/deployments"
	pipelinesvc "github.com/modelplane-labs/modelplane-go/internal/service/pipelines"
	trainjobsvc "github.com/modelplane-labs/modelplane-go/internal/service/trainjobs"
)

type memPipelineRepo struct {
	rows map[string]domain.Pipeline
}

func (r *memPipelineRepo) Create(_ context.Context, p domain.Pipeline) error {
	r.rows[p.ID] = p
	return nil
}

func (r *memPipelineRepo) Get(_ context.Context, _, id string) (domain.Pipeline, error) {
	p, ok := r.rows[id]
	if !ok {
		return domain.Pipeline{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *memPipelineRepo) List(_ context.Context, _ repo.PipelineFilter) ([]domain.Pipeline, error) {
	out := make([]domain.Pipeline, 0, len(r.rows))
	for _, p := range r.rows {
		out = append(out, p)
	}
	return out, nil
}

func (r *memPipelineRepo) UpdateStatus(_ context.Context, _, id string, status domain.PipelineStatus) error {
	p, ok := r.rows[id]
	if !ok {
		return repo.ErrNotFound
	}
	p.Status = status
	r.rows[id] = p
	return nil
}

func (r *memPipelineRepo) UpdateSubmission(_ context.Context, _, id string, status domain.PipelineStatus, workflowName string) error {
	p, ok := r.rows[id]
	if !ok {
		return repo.ErrNotFound
	}
	p.Status = status
	p.WorkflowName = workflowName
	r.rows[id] = p
	return nil
}

type memTrainJobRepo struct {
	rows map[string]domain.TrainJob
}

func (r *memTrainJobRepo) Create(_ context.Context, job domain.TrainJob) error {
	r.rows[job.ID] = job
	return nil
}

func (r *memTrainJobRepo) Get(_ context.Context, _, id string) (domain.TrainJob, error) {
	job, ok := r.rows[id]
	if !ok {
		return domain.TrainJob{}, repo.ErrNotFound
	}
	return job, nil
}

func (r *memTrainJobRepo) List(_ context.Context, _ repo.TrainJobFilter) ([]domain.TrainJob, error) {
	return nil, nil
}

func (r *memTrainJobRepo) UpdateStatus(_ context.Context, _, id string, status domain.TrainJobStatus) error {
	job, ok := r.rows[id]
	if !ok {
		return repo.ErrNotFound
	}
	job.Status = status
	r.rows[id] = job
	return nil
}

func (r *memTrainJobRepo) UpdateTrackingRun(_ context.Context, _, id string, run string) error {
	job, ok := r.rows[id]
	if !ok {
		return repo.ErrNotFound
	}
	job.TrackingRun = run
	r.rows[id] = job
	return nil
}

type memModelRepo struct {
	rows map[string]domain.Model
}

func (r *memModelRepo) Create(_ context.Context, m domain.Model) error {
	r.rows[m.ID] = m
	return nil
}

func (r *memModelRepo) Get(_ context.Context, _, id string) (domain.Model, error) {
	m, ok := r.rows[id]
	if !ok {
		return domain.Model{}, repo.ErrNotFound
	}
	return m, nil
}

func (r *memModelRepo) GetByNameVersion(_ context.Context, _, name, version string) (domain.Model, error) {
	for _, m := range r.rows {
		if m.Name == name && m.Version == version {
			return m, nil
		}
	}
	return domain.Model{}, repo.ErrNotFound
}

func (r *memModelRepo) List(_ context.Context, _ repo.ModelFilter) ([]domain.Model, error) {
	out := make([]domain.Model, 0, len(r.rows))
	for _, m := range r.rows {
		out = append(out, m)
	}
	return out, nil
}

func (r *memModelRepo) UpdateStatus(_ context.Context, _, id string, status domain.ModelStatus) error {
	m, ok := r.rows[id]
	if !ok {
		return repo.ErrNotFound
	}
	m.Status = status
	r.rows[id] = m
	return nil
}

type memDatasetRepo struct {
	datasets map[string]domain.Dataset
	versions map[string]domain.DatasetVersion
}

func (r *memDatasetRepo) CreateDataset(_ context.Context, d domain.Dataset) error {
	r.datasets[d.ID] = d
	return nil
}

func (r *memDatasetRepo) GetDataset(_ context.Context, _, id string) (domain.Dataset, error) {
	d, ok := r.datasets[id]
	if !ok {
		return domain.Dataset{}, repo.ErrNotFound
	}
	return d, nil
}

func (r *memDatasetRepo) ListDatasets(_ context.Context, _ repo.DatasetFilter) ([]domain.Dataset, error) {
	return nil, nil
}

func (r *memDatasetRepo) CreateDatasetVersion(_ context.Context, v domain.DatasetVersion) error {
	r.versions[v.ID] = v
	return nil
}

func (r *memDatasetRepo) GetDatasetVersion(_ context.Context, _, id string) (domain.DatasetVersion, error) {
	v, ok := r.versions[id]
	if !ok {
		return domain.DatasetVersion{}, repo.ErrNotFound
	}
	return v, nil
}

func (r *memDatasetRepo) GetDatasetVersionByName(_ context.Context, _, datasetName, version string) (domain.DatasetVersion, error) {
	for _, v := range r.versions {
		d, ok := r.datasets[v.DatasetID]
		if ok && d.Name == datasetName && v.Version == version {
			return v, nil
		}
	}
	return domain.DatasetVersion{}, repo.ErrNotFound
}

func (r *memDatasetRepo) ListDatasetVersions(_ context.Context, _ repo.DatasetVersionFilter) ([]domain.DatasetVersion, error) {
	return nil, nil
}

type memOrchestrator struct {
	submitErr error
}

func (o *memOrchestrator) Kind() string { return "fake" }

func (o *memOrchestrator) Submit(_ context.Context, _ string, _ *argo.Workflow) error {
	return o.submitErr
}

func (o *memOrchestrator) Status(_ context.Context, _, _ string) (orchestrator.WorkflowState, error) {
	return orchestrator.WorkflowState{}, orchestrator.ErrWorkflowNotFound
}

func (o *memOrchestrator) Stop(_ context.Context, _, _ string) error { return nil }

type memDeployer struct{}

func (d *memDeployer) Deploy(_ context.Context, _ domain.Deployment, _ string, _ string) error {
	return nil
}

func (d *memDeployer) Get(_ context.Context, _ string) (kserve.InferenceService, error) {
	return kserve.InferenceService{}, kserve.ErrServiceNotFound
}

func (d *memDeployer) Retire(_ context.Context, _ string) error { return nil }

func newTestMux(t *testing.T) (*http.ServeMux, *memOrchestrator) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := &memOrchestrator{}

	pipelineRepo := &memPipelineRepo{rows: make(map[string]domain.Pipeline)}
	trainJobRepo := &memTrainJobRepo{rows: make(map[string]domain.TrainJob)}
	modelRepo := &memModelRepo{rows: make(map[string]domain.Model)}
	datasetRepo := &memDatasetRepo{
		datasets: make(map[string]domain.Dataset),
		versions: make(map[string]domain.DatasetVersion),
	}

	pipelines := pipelinesvc.New(logger, pipelineRepo, orch, argo.NewBuilder(), nil, "ml-pipelines")
	trainJobs := trainjobsvc.New(logger, trainJobRepo, modelRepo, datasetRepo, nil, nil)
	deployments := deploysvc.New(logger, &memDeploymentRepo{rows: make(map[string]domain.Deployment)}, trainJobRepo, modelRepo, &memDeployer{}, nil, "models")

	api := newControlPlaneAPI(logger, nil, pipelines, trainJobs, deployments, modelRepo, datasetRepo, nil, objectstore.Config{}, 0)

	mux := http.NewServeMux()
	api.register(mux)
	return mux, orch
}

type memDeploymentRepo struct {
	rows map[string]domain.Deployment
}

func (r *memDeploymentRepo) Create(_ context.Context, d domain.Deployment) error {
	r.rows[d.ID] = d
	return nil
}

func (r *memDeploymentRepo) Get(_ context.Context, _, id string) (domain.Deployment, error) {
	d, ok := r.rows[id]
	if !ok {
		return domain.Deployment{}, repo.ErrNotFound
	}
	return d, nil
}

func (r *memDeploymentRepo) List(_ context.Context, _ repo.DeploymentFilter) ([]domain.Deployment, error) {
	return nil, nil
}

func (r *memDeploymentRepo) UpdateStatus(_ context.Context, _, id string, status domain.DeploymentStatus, endpointURL string) error {
	d, ok := r.rows[id]
	if !ok {
		return repo.ErrNotFound
	}
	d.Status = status
	if endpointURL != "" {
		d.EndpointURL = endpointURL
	}
	r.rows[id] = d
	return nil
}

func doRequest(t *testing.T, mux *http.ServeMux, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := auth.ContextWithIdentity(req.Context(), auth.Identity{Subject: "alice", Roles: []string{"admin"}})
	ctx = auth.ContextWithProjectID(ctx, "proj-1")
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSubmitPipelineEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doRequest(t, mux, http.MethodPost, "/projects/proj-1/pipelines", map[string]any{
		"pipeline_name": "nightly finetune",
		"stages": []map[string]any{
			{"name": "validate", "type": "data_validation"},
			{"name": "train", "type": "training", "dependencies": []string{"validate"}},
			{"name": "eval", "type": "evaluation", "dependencies": []string{"train"}},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp pipelineResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "submitted" {
		t.Fatalf("expected status submitted, got %s", resp.Status)
	}
	if resp.WorkflowName == "" {
		t.Fatalf("expected workflow name")
	}
	if len(resp.EntryStages) != 1 || resp.EntryStages[0] != "validate" {
		t.Fatalf("unexpected entry stages %v", resp.EntryStages)
	}
	if len(resp.ExitStages) != 1 || resp.ExitStages[0] != "eval" {
		t.Fatalf("unexpected exit stages %v", resp.ExitStages)
	}
}

func TestExportPipelineManifest(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doRequest(t, mux, http.MethodPost, "/projects/proj-1/pipelines", map[string]any{
		"pipeline_name": "export me",
		"stages": []map[string]any{
			{"name": "train", "type": "training"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created pipelineResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	rec = doRequest(t, mux, http.MethodGet, "/projects/proj-1/pipelines/"+created.PipelineID+"/manifest?format=yaml", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("entrypoint: main")) {
		t.Fatalf("expected entrypoint in manifest:\n%s", rec.Body.String())
	}

	rec = doRequest(t, mux, http.MethodGet, "/projects/proj-1/pipelines/"+created.PipelineID+"/manifest", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var manifest map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if manifest["kind"] != "Workflow" {
		t.Fatalf("unexpected manifest kind %v", manifest["kind"])
	}
}

func TestSubmitPipelineCycleRejected(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doRequest(t, mux, http.MethodPost, "/projects/proj-1/pipelines", map[string]any{
		"pipeline_name": "looped",
		"stages": []map[string]any{
			{"name": "a", "type": "training", "dependencies": []string{"b"}},
			{"name": "b", "type": "training", "dependencies": []string{"a"}},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("invalid_pipeline")) {
		t.Fatalf("expected invalid_pipeline error, got %s", rec.Body.String())
	}
}

func TestSubmitPipelineOrchestratorDownReturnsAccepted(t *testing.T) {
	mux, orch := newTestMux(t)
	orch.submitErr = errors.New("connection refused")

	rec := doRequest(t, mux, http.MethodPost, "/projects/proj-1/pipelines", map[string]any{
		"pipeline_name": "nightly finetune",
		"stages": []map[string]any{
			{"name": "train", "type": "training"},
		},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp pipelineResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "submit_failed" {
		t.Fatalf("expected status submit_failed, got %s", resp.Status)
	}
	if resp.WorkflowName != "" {
		t.Fatalf("expected empty workflow name, got %q", resp.WorkflowName)
	}
}

func TestSubmitTrainJobIncompatibleSpec(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doRequest(t, mux, http.MethodPost, "/projects/proj-1/train-jobs", map[string]any{
		"job_type":     "EMBEDDING",
		"model_family": "e5",
		"dataset":      map[string]any{"name": "qa-pairs", "version": "v1", "type": "rag_qa"},
		"base_model_ref": map[string]any{
			"name": "e5-large", "version": "2",
		},
		"method":      "full",
		"hyperparams": map[string]any{"lr": 1e-4, "batch_size": 32, "num_epochs": 1, "max_seq_len": 512},
		"resources":   map[string]any{"gpus": 1, "nodes": 1},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("spec_incompatible")) {
		t.Fatalf("expected spec_incompatible error, got %s", rec.Body.String())
	}
}

func TestGetPipelineNotFound(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doRequest(t, mux, http.MethodGet, "/projects/proj-1/pipelines/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}
