package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
	"github.com/modelplane-labs/modelplane-go/internal/pipeline/argo"
	"github.com/modelplane-labs/modelplane-go/internal/pipeline/parser"
	"github.com/modelplane-labs/modelplane-go/internal/repo"
	pipelinesvc "github.com/modelplane-labs/modelplane-go/internal/service/pipelines"
)

func (api *controlPlaneAPI) registerPipelines(mux *http.ServeMux) {
	mux.HandleFunc("POST /projects/{project_id}/pipelines", api.handleSubmitPipeline)
	mux.HandleFunc("GET /projects/{project_id}/pipelines", api.handleListPipelines)
	mux.HandleFunc("GET /projects/{project_id}/pipelines/{pipeline_id}", api.handleGetPipeline)
	mux.HandleFunc("GET /projects/{project_id}/pipelines/{pipeline_id}/manifest", api.handleExportPipelineManifest)
	mux.HandleFunc("POST /projects/{project_id}/pipelines/{pipeline_id}/cancel", api.handleCancelPipeline)
	mux.HandleFunc("POST /projects/{project_id}/pipelines/{pipeline_id}/retry", api.handleRetryPipeline)
}

type stageConditionBody struct {
	Field    string `json:"field,omitempty"`
	Task     string `json:"task,omitempty"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type stageResourcesBody struct {
	CPU         string `json:"cpu,omitempty"`
	Memory      string `json:"memory,omitempty"`
	GPU         string `json:"gpu,omitempty"`
	CPULimit    string `json:"cpu_limit,omitempty"`
	MemoryLimit string `json:"memory_limit,omitempty"`
	GPULimit    string `json:"gpu_limit,omitempty"`
}

type stageConfigBody struct {
	Image     string              `json:"image,omitempty"`
	Command   []string            `json:"command,omitempty"`
	Args      []string            `json:"args,omitempty"`
	Env       map[string]string   `json:"env,omitempty"`
	Resources *stageResourcesBody `json:"resources,omitempty"`
}

type stageBody struct {
	Name         string              `json:"name"`
	Type         string              `json:"type,omitempty"`
	Dependencies []string            `json:"dependencies,omitempty"`
	Condition    *stageConditionBody `json:"condition,omitempty"`
	Config       *stageConfigBody    `json:"config,omitempty"`
}

type submitPipelineRequest struct {
	PipelineName        string         `json:"pipeline_name"`
	Stages              []stageBody    `json:"stages"`
	OrchestrationSystem string         `json:"orchestration_system,omitempty"`
	MaxRetries          *int           `json:"max_retries,omitempty"`
	Namespace           string         `json:"namespace,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

type pipelineResponse struct {
	PipelineID          string         `json:"pipeline_id"`
	ProjectID           string         `json:"project_id"`
	Name                string         `json:"name"`
	OrchestrationSystem string         `json:"orchestration_system"`
	Namespace           string         `json:"namespace"`
	WorkflowName        string         `json:"workflow_name,omitempty"`
	Status              string         `json:"status"`
	Entrypoint          string         `json:"entrypoint"`
	EntryStages         []string       `json:"entry_stages"`
	ExitStages          []string       `json:"exit_stages"`
	StageCount          int            `json:"stage_count"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	CreatedBy           string         `json:"created_by,omitempty"`
}

func pipelineToResponse(p domain.Pipeline) pipelineResponse {
	return pipelineResponse{
		PipelineID:          p.ID,
		ProjectID:           p.ProjectID,
		Name:                p.Name,
		OrchestrationSystem: p.OrchestrationSystem,
		Namespace:           p.Namespace,
		WorkflowName:        p.WorkflowName,
		Status:              string(p.Status),
		Entrypoint:          p.Definition.Entrypoint,
		EntryStages:         p.Definition.EntryStages(),
		ExitStages:          p.Definition.ExitStages(),
		StageCount:          len(p.Definition.Stages),
		Metadata:            p.Metadata,
		CreatedAt:           p.CreatedAt,
		CreatedBy:           p.CreatedBy,
	}
}

func parserInputFromRequest(req submitPipelineRequest) parser.Input {
	stages := make([]parser.StageInput, 0, len(req.Stages))
	for _, stage := range req.Stages {
		in := parser.StageInput{
			Name:         stage.Name,
			Type:         stage.Type,
			Dependencies: stage.Dependencies,
		}
		if stage.Condition != nil {
			in.Condition = &parser.ConditionInput{
				Field:    stage.Condition.Field,
				Task:     stage.Condition.Task,
				Operator: stage.Condition.Operator,
				Value:    stage.Condition.Value,
			}
		}
		if stage.Config != nil {
			cfg := &parser.ConfigInput{
				Image:   stage.Config.Image,
				Command: stage.Config.Command,
				Args:    stage.Config.Args,
				Env:     stage.Config.Env,
			}
			if stage.Config.Resources != nil {
				cfg.Resources = domain.StageResources{
					CPU:         stage.Config.Resources.CPU,
					Memory:      stage.Config.Resources.Memory,
					GPU:         stage.Config.Resources.GPU,
					CPULimit:    stage.Config.Resources.CPULimit,
					MemoryLimit: stage.Config.Resources.MemoryLimit,
					GPULimit:    stage.Config.Resources.GPULimit,
				}
			}
			in.Config = cfg
		}
		stages = append(stages, in)
	}
	return parser.Input{
		PipelineName:        req.PipelineName,
		Stages:              stages,
		OrchestrationSystem: req.OrchestrationSystem,
		MaxRetries:          req.MaxRetries,
	}
}

func (api *controlPlaneAPI) handleSubmitPipeline(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}

	var req submitPipelineRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	pipeline, err := api.pipelines.Submit(r.Context(), pipelinesvc.SubmitInput{
		ProjectID: projectID,
		Actor:     identity.Subject,
		Namespace: req.Namespace,
		Metadata:  req.Metadata,
		Input:     parserInputFromRequest(req),
	})
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	api.audit(r, identity, "pipeline.submit", "pipeline", pipeline.ID, map[string]any{
		"name":          pipeline.Name,
		"status":        string(pipeline.Status),
		"workflow_name": pipeline.WorkflowName,
		"stages":        len(pipeline.Definition.Stages),
	})

	status := http.StatusCreated
	if pipeline.Status == domain.PipelineStatusSubmitFailed {
		// Persisted but not running; the caller can retry the submission.
		status = http.StatusAccepted
	}
	w.Header().Set("Location", "/projects/"+projectID+"/pipelines/"+pipeline.ID)
	api.writeJSON(w, status, pipelineToResponse(pipeline))
}

func (api *controlPlaneAPI) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)

	pipelines, err := api.pipelines.List(r.Context(), repo.PipelineFilter{
		ProjectID: projectID,
		Status:    domain.PipelineStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Limit:     limit,
	})
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	out := make([]pipelineResponse, 0, len(pipelines))
	for _, pipeline := range pipelines {
		out = append(out, pipelineToResponse(pipeline))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"pipelines": out})
}

func (api *controlPlaneAPI) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	pipelineID := strings.TrimSpace(r.PathValue("pipeline_id"))
	if pipelineID == "" {
		api.writeError(w, r, http.StatusBadRequest, "pipeline_id_required")
		return
	}

	var (
		pipeline domain.Pipeline
		err      error
	)
	if strings.EqualFold(r.URL.Query().Get("refresh"), "true") {
		pipeline, err = api.pipelines.Refresh(r.Context(), projectID, pipelineID)
	} else {
		pipeline, err = api.pipelines.Get(r.Context(), projectID, pipelineID)
	}
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, pipelineToResponse(pipeline))
}

func (api *controlPlaneAPI) handleExportPipelineManifest(w http.ResponseWriter, r *http.Request) {
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	pipelineID := strings.TrimSpace(r.PathValue("pipeline_id"))
	if pipelineID == "" {
		api.writeError(w, r, http.StatusBadRequest, "pipeline_id_required")
		return
	}

	workflow, err := api.pipelines.Manifest(r.Context(), projectID, pipelineID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "yaml") {
		raw, err := argo.MarshalWorkflowYAML(workflow)
		if err != nil {
			api.writeError(w, r, http.StatusInternalServerError, "internal_error")
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
		return
	}

	raw, err := argo.MarshalWorkflowJSON(workflow)
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (api *controlPlaneAPI) handleCancelPipeline(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	pipelineID := strings.TrimSpace(r.PathValue("pipeline_id"))
	if pipelineID == "" {
		api.writeError(w, r, http.StatusBadRequest, "pipeline_id_required")
		return
	}

	pipeline, err := api.pipelines.Cancel(r.Context(), projectID, pipelineID)
	if err != nil {
		if isTransitionError(err) {
			api.writeError(w, r, http.StatusConflict, "invalid_transition")
			return
		}
		api.writeDomainError(w, r, err)
		return
	}

	api.audit(r, identity, "pipeline.cancel", "pipeline", pipeline.ID, map[string]any{
		"workflow_name": pipeline.WorkflowName,
	})
	api.writeJSON(w, http.StatusOK, pipelineToResponse(pipeline))
}

func (api *controlPlaneAPI) handleRetryPipeline(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	pipelineID := strings.TrimSpace(r.PathValue("pipeline_id"))
	if pipelineID == "" {
		api.writeError(w, r, http.StatusBadRequest, "pipeline_id_required")
		return
	}

	pipeline, err := api.pipelines.Retry(r.Context(), projectID, pipelineID)
	if err != nil {
		if isTransitionError(err) {
			api.writeError(w, r, http.StatusConflict, "invalid_transition")
			return
		}
		api.writeDomainError(w, r, err)
		return
	}

	api.audit(r, identity, "pipeline.retry", "pipeline", pipeline.ID, map[string]any{
		"workflow_name": pipeline.WorkflowName,
		"status":        string(pipeline.Status),
	})
	api.writeJSON(w, http.StatusOK, pipelineToResponse(pipeline))
}

func isTransitionError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "transition")
}
