package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
	"github.com/modelplane-labs/modelplane-go/internal/repo"
	trainjobsvc "github.com/modelplane-labs/modelplane-go/internal/service/trainjobs"
)

func (api *controlPlaneAPI) registerTrainJobs(mux *http.ServeMux) {
	mux.HandleFunc("POST /projects/{project_id}/train-jobs", api.handleSubmitTrainJob)
	mux.HandleFunc("GET /projects/{project_id}/train-jobs", api.handleListTrainJobs)
	mux.HandleFunc("GET /projects/{project_id}/train-jobs/{job_id}", api.handleGetTrainJob)
	mux.HandleFunc("POST /projects/{project_id}/train-jobs/{job_id}/status", api.handleUpdateTrainJobStatus)
	mux.HandleFunc("POST /projects/{project_id}/train-jobs/{job_id}/revalidate", api.handleRevalidateTrainJob)
}

type modelRefBody struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type datasetRefBody struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type,omitempty"`
}

type hyperparamsBody struct {
	LearningRate float64 `json:"lr"`
	BatchSize    int     `json:"batch_size"`
	NumEpochs    int     `json:"num_epochs"`
	MaxSeqLen    int     `json:"max_seq_len"`
	Precision    string  `json:"precision,omitempty"`
}

type trainResourcesBody struct {
	GPUs  int `json:"gpus"`
	Nodes int `json:"nodes"`
}

type submitTrainJobRequest struct {
	JobType     string             `json:"job_type"`
	ModelFamily string             `json:"model_family"`
	Dataset     datasetRefBody     `json:"dataset"`
	BaseModel   *modelRefBody      `json:"base_model_ref,omitempty"`
	Hyperparams hyperparamsBody    `json:"hyperparams"`
	Method      string             `json:"method,omitempty"`
	Resources   trainResourcesBody `json:"resources"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
}

type trainJobResponse struct {
	JobID       string         `json:"job_id"`
	ProjectID   string         `json:"project_id"`
	JobType     string         `json:"job_type"`
	ModelFamily string         `json:"model_family"`
	Dataset     datasetRefBody `json:"dataset"`
	BaseModel   *modelRefBody  `json:"base_model_ref,omitempty"`
	Status      string         `json:"status"`
	TrackingRun string         `json:"tracking_run,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CreatedBy   string         `json:"created_by,omitempty"`
}

func trainJobToResponse(job domain.TrainJob) trainJobResponse {
	resp := trainJobResponse{
		JobID:       job.ID,
		ProjectID:   job.ProjectID,
		JobType:     string(job.Spec.JobType),
		ModelFamily: job.Spec.ModelFamily,
		Dataset: datasetRefBody{
			Name:    job.Spec.Dataset.Name,
			Version: job.Spec.Dataset.Version,
			Type:    string(job.Spec.Dataset.Type),
		},
		Status:      string(job.Status),
		TrackingRun: job.TrackingRun,
		Metadata:    job.Metadata,
		CreatedAt:   job.CreatedAt,
		CreatedBy:   job.CreatedBy,
	}
	if job.Spec.BaseModel != nil {
		resp.BaseModel = &modelRefBody{Name: job.Spec.BaseModel.Name, Version: job.Spec.BaseModel.Version}
	}
	return resp
}

func trainJobSpecFromRequest(req submitTrainJobRequest) domain.TrainJobSpec {
	spec := domain.TrainJobSpec{
		JobType:     domain.JobType(strings.ToUpper(strings.TrimSpace(req.JobType))),
		ModelFamily: req.ModelFamily,
		Dataset: domain.DatasetRef{
			Name:    strings.TrimSpace(req.Dataset.Name),
			Version: strings.TrimSpace(req.Dataset.Version),
			Type:    domain.DatasetType(strings.ToLower(strings.TrimSpace(req.Dataset.Type))),
		},
		Hyperparams: domain.Hyperparams{
			LearningRate: req.Hyperparams.LearningRate,
			BatchSize:    req.Hyperparams.BatchSize,
			NumEpochs:    req.Hyperparams.NumEpochs,
			MaxSeqLen:    req.Hyperparams.MaxSeqLen,
			Precision:    strings.TrimSpace(req.Hyperparams.Precision),
		},
		Method: domain.TrainMethod(strings.ToLower(strings.TrimSpace(req.Method))),
		Resources: domain.TrainResources{
			GPUs:  req.Resources.GPUs,
			Nodes: req.Resources.Nodes,
		},
	}
	if req.BaseModel != nil {
		spec.BaseModel = &domain.ModelRef{
			Name:    strings.TrimSpace(req.BaseModel.Name),
			Version: strings.TrimSpace(req.BaseModel.Version),
		}
	}
	return spec
}

func (api *controlPlaneAPI) handleSubmitTrainJob(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}

	var req submitTrainJobRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	job, err := api.trainJobs.Submit(r.Context(), trainjobsvc.SubmitInput{
		ProjectID: projectID,
		Actor:     identity.Subject,
		Metadata:  req.Metadata,
		Spec:      trainJobSpecFromRequest(req),
	})
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	api.audit(r, identity, "train_job.submit", "train_job", job.ID, map[string]any{
		"job_type":     string(job.Spec.JobType),
		"model_family": job.Spec.ModelFamily,
		"tracking_run": job.TrackingRun,
	})

	w.Header().Set("Location", "/projects/"+projectID+"/train-jobs/"+job.ID)
	api.writeJSON(w, http.StatusCreated, trainJobToResponse(job))
}

func (api *controlPlaneAPI) handleListTrainJobs(w http.ResponseWriter, r *http.Request) {
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)

	jobs, err := api.trainJobs.List(r.Context(), repo.TrainJobFilter{
		ProjectID: projectID,
		JobType:   domain.JobType(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("job_type")))),
		Status:    domain.TrainJobStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Limit:     limit,
	})
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	out := make([]trainJobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, trainJobToResponse(job))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"train_jobs": out})
}

func (api *controlPlaneAPI) handleGetTrainJob(w http.ResponseWriter, r *http.Request) {
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	jobID := strings.TrimSpace(r.PathValue("job_id"))
	if jobID == "" {
		api.writeError(w, r, http.StatusBadRequest, "job_id_required")
		return
	}

	job, err := api.trainJobs.Get(r.Context(), projectID, jobID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, trainJobToResponse(job))
}

type updateTrainJobStatusRequest struct {
	Status string `json:"status"`
}

func (api *controlPlaneAPI) handleUpdateTrainJobStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	jobID := strings.TrimSpace(r.PathValue("job_id"))
	if jobID == "" {
		api.writeError(w, r, http.StatusBadRequest, "job_id_required")
		return
	}

	var req updateTrainJobStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	status := domain.TrainJobStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		api.writeError(w, r, http.StatusBadRequest, "invalid_status")
		return
	}

	if err := api.trainJobs.UpdateStatus(r.Context(), projectID, jobID, status); err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	api.audit(r, identity, "train_job.status", "train_job", jobID, map[string]any{
		"status": string(status),
	})

	job, err := api.trainJobs.Get(r.Context(), projectID, jobID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, trainJobToResponse(job))
}

func (api *controlPlaneAPI) handleRevalidateTrainJob(w http.ResponseWriter, r *http.Request) {
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	jobID := strings.TrimSpace(r.PathValue("job_id"))
	if jobID == "" {
		api.writeError(w, r, http.StatusBadRequest, "job_id_required")
		return
	}

	if err := api.trainJobs.Revalidate(r.Context(), projectID, jobID); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "valid": true})
}
