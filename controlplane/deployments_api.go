package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
	"github.com/modelplane-labs/modelplane-go/internal/repo"
	deploysvc "github.com/modelplane-labs/modelplane-go/internal/service/deployments"
)

func (api *controlPlaneAPI) registerDeployments(mux *http.ServeMux) {
	mux.HandleFunc("POST /projects/{project_id}/deployments", api.handleCreateDeployment)
	mux.HandleFunc("GET /projects/{project_id}/deployments", api.handleListDeployments)
	mux.HandleFunc("GET /projects/{project_id}/deployments/{deployment_id}", api.handleGetDeployment)
	mux.HandleFunc("POST /projects/{project_id}/deployments/{deployment_id}/retire", api.handleRetireDeployment)
}

type trafficSplitBody struct {
	Old int `json:"old"`
	New int `json:"new"`
}

type rolloutBody struct {
	Strategy     string            `json:"strategy"`
	TrafficSplit *trafficSplitBody `json:"traffic_split,omitempty"`
}

type serveResourcesBody struct {
	GPUs        int `json:"gpus"`
	GPUMemoryGB int `json:"gpu_memory_gb,omitempty"`
}

type runtimeLimitsBody struct {
	MaxConcurrentRequests int `json:"max_concurrent_requests"`
	MaxInputTokens        int `json:"max_input_tokens"`
	MaxOutputTokens       int `json:"max_output_tokens"`
}

type createDeploymentRequest struct {
	TrainJobID  string             `json:"train_job_id,omitempty"`
	Model       modelRefBody       `json:"model"`
	ModelFamily string             `json:"model_family"`
	JobType     string             `json:"job_type,omitempty"`
	ServeTarget string             `json:"serve_target"`
	Resources   serveResourcesBody `json:"resources"`
	Runtime     runtimeLimitsBody  `json:"runtime"`
	Rollout     *rolloutBody       `json:"rollout,omitempty"`
	UseGPU      bool               `json:"use_gpu,omitempty"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
}

type deploymentResponse struct {
	DeploymentID string         `json:"deployment_id"`
	ProjectID    string         `json:"project_id"`
	TrainJobID   string         `json:"train_job_id,omitempty"`
	Model        modelRefBody   `json:"model"`
	ModelFamily  string         `json:"model_family"`
	JobType      string         `json:"job_type"`
	ServeTarget  string         `json:"serve_target"`
	Status       string         `json:"status"`
	EndpointURL  string         `json:"endpoint_url,omitempty"`
	ServiceName  string         `json:"service_name"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	CreatedBy    string         `json:"created_by,omitempty"`
}

func deploymentToResponse(d domain.Deployment) deploymentResponse {
	return deploymentResponse{
		DeploymentID: d.ID,
		ProjectID:    d.ProjectID,
		TrainJobID:   d.TrainJobID,
		Model:        modelRefBody{Name: d.Spec.Model.Name, Version: d.Spec.Model.Version},
		ModelFamily:  d.Spec.ModelFamily,
		JobType:      string(d.Spec.JobType),
		ServeTarget:  string(d.Spec.ServeTarget),
		Status:       string(d.Status),
		EndpointURL:  d.EndpointURL,
		ServiceName:  deploysvc.ServiceName(d.Spec.Model.Name, d.ID),
		Metadata:     d.Metadata,
		CreatedAt:    d.CreatedAt,
		CreatedBy:    d.CreatedBy,
	}
}

func deploymentSpecFromRequest(req createDeploymentRequest) domain.DeploymentSpec {
	spec := domain.DeploymentSpec{
		Model: domain.ModelRef{
			Name:    strings.TrimSpace(req.Model.Name),
			Version: strings.TrimSpace(req.Model.Version),
		},
		ModelFamily: req.ModelFamily,
		JobType:     domain.JobType(strings.ToUpper(strings.TrimSpace(req.JobType))),
		ServeTarget: domain.ServeTarget(strings.ToUpper(strings.TrimSpace(req.ServeTarget))),
		Resources: domain.ServeResources{
			GPUs:        req.Resources.GPUs,
			GPUMemoryGB: req.Resources.GPUMemoryGB,
		},
		Runtime: domain.RuntimeLimits{
			MaxConcurrentRequests: req.Runtime.MaxConcurrentRequests,
			MaxInputTokens:        req.Runtime.MaxInputTokens,
			MaxOutputTokens:       req.Runtime.MaxOutputTokens,
		},
		UseGPU: req.UseGPU,
	}
	if req.Rollout != nil {
		rollout := &domain.Rollout{
			Strategy: domain.RolloutStrategy(strings.ToLower(strings.TrimSpace(req.Rollout.Strategy))),
		}
		if req.Rollout.TrafficSplit != nil {
			rollout.TrafficSplit = &domain.TrafficSplit{
				Old: req.Rollout.TrafficSplit.Old,
				New: req.Rollout.TrafficSplit.New,
			}
		}
		spec.Rollout = rollout
	}
	return spec
}

func (api *controlPlaneAPI) handleCreateDeployment(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}

	var req createDeploymentRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	deployment, err := api.deployments.Create(r.Context(), deploysvc.CreateInput{
		ProjectID:  projectID,
		Actor:      identity.Subject,
		TrainJobID: req.TrainJobID,
		Metadata:   req.Metadata,
		Spec:       deploymentSpecFromRequest(req),
	})
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	api.audit(r, identity, "deployment.create", "deployment", deployment.ID, map[string]any{
		"model":        deployment.Spec.Model.Name,
		"serve_target": string(deployment.Spec.ServeTarget),
		"status":       string(deployment.Status),
	})

	status := http.StatusCreated
	if deployment.Status == domain.DeploymentStatusDeployFailed {
		status = http.StatusAccepted
	}
	w.Header().Set("Location", "/projects/"+projectID+"/deployments/"+deployment.ID)
	api.writeJSON(w, status, deploymentToResponse(deployment))
}

func (api *controlPlaneAPI) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)

	deployments, err := api.deployments.List(r.Context(), repo.DeploymentFilter{
		ProjectID: projectID,
		Status:    domain.DeploymentStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Limit:     limit,
	})
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	out := make([]deploymentResponse, 0, len(deployments))
	for _, deployment := range deployments {
		out = append(out, deploymentToResponse(deployment))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"deployments": out})
}

func (api *controlPlaneAPI) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	deploymentID := strings.TrimSpace(r.PathValue("deployment_id"))
	if deploymentID == "" {
		api.writeError(w, r, http.StatusBadRequest, "deployment_id_required")
		return
	}

	var (
		deployment domain.Deployment
		err        error
	)
	if strings.EqualFold(r.URL.Query().Get("refresh"), "true") {
		deployment, err = api.deployments.Refresh(r.Context(), projectID, deploymentID)
	} else {
		deployment, err = api.deployments.Get(r.Context(), projectID, deploymentID)
	}
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, deploymentToResponse(deployment))
}

func (api *controlPlaneAPI) handleRetireDeployment(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	deploymentID := strings.TrimSpace(r.PathValue("deployment_id"))
	if deploymentID == "" {
		api.writeError(w, r, http.StatusBadRequest, "deployment_id_required")
		return
	}

	deployment, err := api.deployments.Retire(r.Context(), projectID, deploymentID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	api.audit(r, identity, "deployment.retire", "deployment", deployment.ID, nil)
	api.writeJSON(w, http.StatusOK, deploymentToResponse(deployment))
}
