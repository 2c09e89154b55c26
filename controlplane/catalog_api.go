package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
	"github.com/modelplane-labs/modelplane-go/internal/repo"
)

func (api *controlPlaneAPI) registerCatalog(mux *http.ServeMux) {
	mux.HandleFunc("POST /projects/{project_id}/models", api.handleRegisterModel)
	mux.HandleFunc("GET /projects/{project_id}/models", api.handleListModels)
	mux.HandleFunc("GET /projects/{project_id}/models/{model_id}", api.handleGetModel)
	mux.HandleFunc("POST /projects/{project_id}/models/{model_id}/status", api.handleUpdateModelStatus)
	mux.HandleFunc("GET /projects/{project_id}/models/{model_id}/artifact", api.handleModelArtifactURL)

	mux.HandleFunc("POST /projects/{project_id}/datasets", api.handleCreateDataset)
	mux.HandleFunc("GET /projects/{project_id}/datasets", api.handleListDatasets)
	mux.HandleFunc("GET /projects/{project_id}/datasets/{dataset_id}", api.handleGetDataset)
	mux.HandleFunc("GET /projects/{project_id}/datasets/{dataset_id}/versions", api.handleListDatasetVersions)
	mux.HandleFunc("POST /projects/{project_id}/datasets/{dataset_id}/versions", api.handleCreateDatasetVersion)
	mux.HandleFunc("GET /projects/{project_id}/dataset-versions/{version_id}", api.handleGetDatasetVersion)
	mux.HandleFunc("GET /projects/{project_id}/dataset-versions/{version_id}/download", api.handleDatasetVersionURL)
}

type registerModelRequest struct {
	Name                  string         `json:"name"`
	Version               string         `json:"version"`
	Family                string         `json:"family"`
	MaxPositionEmbeddings int            `json:"max_position_embeddings,omitempty"`
	SourceTrainJobID      string         `json:"source_train_job_id,omitempty"`
	Metadata              map[string]any `json:"metadata,omitempty"`
}

type modelResponse struct {
	ModelID               string         `json:"model_id"`
	ProjectID             string         `json:"project_id"`
	Name                  string         `json:"name"`
	Version               string         `json:"version"`
	Family                string         `json:"family"`
	MaxPositionEmbeddings int            `json:"max_position_embeddings,omitempty"`
	Status                string         `json:"status"`
	ArtifactKey           string         `json:"artifact_key,omitempty"`
	SourceTrainJobID      string         `json:"source_train_job_id,omitempty"`
	Metadata              map[string]any `json:"metadata,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	CreatedBy             string         `json:"created_by,omitempty"`
}

func modelToResponse(m domain.Model) modelResponse {
	return modelResponse{
		ModelID:               m.ID,
		ProjectID:             m.ProjectID,
		Name:                  m.Name,
		Version:               m.Version,
		Family:                m.Family,
		MaxPositionEmbeddings: m.MaxPositionEmbeddings,
		Status:                string(m.Status),
		ArtifactKey:           m.ArtifactKey,
		SourceTrainJobID:      m.SourceTrainJobID,
		Metadata:              m.Metadata,
		CreatedAt:             m.CreatedAt,
		CreatedBy:             m.CreatedBy,
	}
}

// handleRegisterModel catalogs a model version as draft and hands back a
// presigned upload URL for its artifact.
func (api *controlPlaneAPI) handleRegisterModel(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}

	var req registerModelRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		api.writeError(w, r, http.StatusBadRequest, "name_required")
		return
	}
	version := strings.TrimSpace(req.Version)
	if version == "" {
		api.writeError(w, r, http.StatusBadRequest, "version_required")
		return
	}

	model := domain.Model{
		ID:                    uuid.NewString(),
		ProjectID:             projectID,
		Name:                  name,
		Version:               version,
		Family:                strings.ToLower(strings.TrimSpace(req.Family)),
		MaxPositionEmbeddings: req.MaxPositionEmbeddings,
		Status:                domain.ModelStatusDraft,
		ArtifactKey:           fmt.Sprintf("%s/%s/%s", projectID, name, version),
		SourceTrainJobID:      strings.TrimSpace(req.SourceTrainJobID),
		Metadata:              req.Metadata,
		CreatedAt:             time.Now().UTC(),
		CreatedBy:             identity.Subject,
	}
	if err := api.models.Create(r.Context(), model); err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	api.audit(r, identity, "model.register", "model", model.ID, map[string]any{
		"name":    model.Name,
		"version": model.Version,
		"family":  model.Family,
	})

	resp := map[string]any{"model": modelToResponse(model)}
	if api.store != nil {
		uploadURL, err := api.store.PresignPut(r.Context(), api.storeCfg.BucketModels, model.ArtifactKey, api.presignTTL)
		if err != nil {
			api.logger.Warn("artifact upload presign failed", "model_id", model.ID, "error", err.Error())
		} else {
			resp["upload_url"] = uploadURL
			resp["upload_expires_in_seconds"] = int(api.presignTTL.Seconds())
		}
	}

	w.Header().Set("Location", "/projects/"+projectID+"/models/"+model.ID)
	api.writeJSON(w, http.StatusCreated, resp)
}

func (api *controlPlaneAPI) handleListModels(w http.ResponseWriter, r *http.Request) {
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)

	models, err := api.models.List(r.Context(), repo.ModelFilter{
		ProjectID: projectID,
		Name:      strings.TrimSpace(r.URL.Query().Get("name")),
		Family:    strings.ToLower(strings.TrimSpace(r.URL.Query().Get("family"))),
		Status:    domain.ModelStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Limit:     limit,
	})
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	out := make([]modelResponse, 0, len(models))
	for _, model := range models {
		out = append(out, modelToResponse(model))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"models": out})
}

func (api *controlPlaneAPI) handleGetModel(w http.ResponseWriter, r *http.Request) {
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	modelID := strings.TrimSpace(r.PathValue("model_id"))
	if modelID == "" {
		api.writeError(w, r, http.StatusBadRequest, "model_id_required")
		return
	}

	model, err := api.models.Get(r.Context(), projectID, modelID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, modelToResponse(model))
}

type updateModelStatusRequest struct {
	Status string `json:"status"`
}

func (api *controlPlaneAPI) handleUpdateModelStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	modelID := strings.TrimSpace(r.PathValue("model_id"))
	if modelID == "" {
		api.writeError(w, r, http.StatusBadRequest, "model_id_required")
		return
	}

	var req updateModelStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	next := domain.ModelStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !next.Valid() {
		api.writeError(w, r, http.StatusBadRequest, "invalid_status")
		return
	}

	model, err := api.models.Get(r.Context(), projectID, modelID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	if err := domain.ValidateModelTransition(model.Status, next); err != nil {
		api.writeError(w, r, http.StatusConflict, "invalid_transition")
		return
	}
	if err := api.models.UpdateStatus(r.Context(), projectID, modelID, next); err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	api.audit(r, identity, "model.status", "model", modelID, map[string]any{
		"from": string(model.Status),
		"to":   string(next),
	})
	model.Status = next
	api.writeJSON(w, http.StatusOK, modelToResponse(model))
}

func (api *controlPlaneAPI) handleModelArtifactURL(w http.ResponseWriter, r *http.Request) {
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	modelID := strings.TrimSpace(r.PathValue("model_id"))
	if modelID == "" {
		api.writeError(w, r, http.StatusBadRequest, "model_id_required")
		return
	}
	if api.store == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}

	model, err := api.models.Get(r.Context(), projectID, modelID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	if strings.TrimSpace(model.ArtifactKey) == "" {
		api.writeError(w, r, http.StatusNotFound, "artifact_not_found")
		return
	}

	downloadURL, err := api.store.PresignGet(r.Context(), api.storeCfg.BucketModels, model.ArtifactKey, api.presignTTL)
	if err != nil {
		api.writeError(w, r, http.StatusBadGateway, "object_store_error")
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"download_url":       downloadURL,
		"expires_in_seconds": int(api.presignTTL.Seconds()),
	})
}

type createDatasetRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type datasetResponse struct {
	DatasetID   string         `json:"dataset_id"`
	ProjectID   string         `json:"project_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CreatedBy   string         `json:"created_by,omitempty"`
}

func datasetToResponse(d domain.Dataset) datasetResponse {
	return datasetResponse{
		DatasetID:   d.ID,
		ProjectID:   d.ProjectID,
		Name:        d.Name,
		Description: d.Description,
		Metadata:    d.Metadata,
		CreatedAt:   d.CreatedAt,
		CreatedBy:   d.CreatedBy,
	}
}

func (api *controlPlaneAPI) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}

	var req createDatasetRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		api.writeError(w, r, http.StatusBadRequest, "name_required")
		return
	}

	dataset := domain.Dataset{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Metadata:    req.Metadata,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   identity.Subject,
	}
	if err := api.datasets.CreateDataset(r.Context(), dataset); err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	api.audit(r, identity, "dataset.create", "dataset", dataset.ID, map[string]any{"name": name})

	w.Header().Set("Location", "/projects/"+projectID+"/datasets/"+dataset.ID)
	api.writeJSON(w, http.StatusCreated, datasetToResponse(dataset))
}

func (api *controlPlaneAPI) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)

	datasets, err := api.datasets.ListDatasets(r.Context(), repo.DatasetFilter{
		ProjectID: projectID,
		Name:      strings.TrimSpace(r.URL.Query().Get("name")),
		Limit:     limit,
	})
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	out := make([]datasetResponse, 0, len(datasets))
	for _, dataset := range datasets {
		out = append(out, datasetToResponse(dataset))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"datasets": out})
}

func (api *controlPlaneAPI) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	datasetID := strings.TrimSpace(r.PathValue("dataset_id"))
	if datasetID == "" {
		api.writeError(w, r, http.StatusBadRequest, "dataset_id_required")
		return
	}

	dataset, err := api.datasets.GetDataset(r.Context(), projectID, datasetID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, datasetToResponse(dataset))
}

type createDatasetVersionRequest struct {
	Version   string         `json:"version"`
	Type      string         `json:"type"`
	SizeBytes int64          `json:"size_bytes,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type datasetVersionResponse struct {
	VersionID string         `json:"version_id"`
	DatasetID string         `json:"dataset_id"`
	ProjectID string         `json:"project_id"`
	Version   string         `json:"version"`
	Type      string         `json:"type"`
	ObjectKey string         `json:"object_key"`
	SizeBytes int64          `json:"size_bytes,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	CreatedBy string         `json:"created_by,omitempty"`
}

func datasetVersionToResponse(v domain.DatasetVersion) datasetVersionResponse {
	return datasetVersionResponse{
		VersionID: v.ID,
		DatasetID: v.DatasetID,
		ProjectID: v.ProjectID,
		Version:   v.Version,
		Type:      string(v.Type),
		ObjectKey: v.ObjectKey,
		SizeBytes: v.SizeBytes,
		Metadata:  v.Metadata,
		CreatedAt: v.CreatedAt,
		CreatedBy: v.CreatedBy,
	}
}

// handleCreateDatasetVersion registers an immutable dataset version and
// hands back a presigned upload URL for its payload.
func (api *controlPlaneAPI) handleCreateDatasetVersion(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	datasetID := strings.TrimSpace(r.PathValue("dataset_id"))
	if datasetID == "" {
		api.writeError(w, r, http.StatusBadRequest, "dataset_id_required")
		return
	}

	var req createDatasetVersionRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	version := strings.TrimSpace(req.Version)
	if version == "" {
		api.writeError(w, r, http.StatusBadRequest, "version_required")
		return
	}
	datasetType := domain.DatasetType(strings.ToLower(strings.TrimSpace(req.Type)))
	if !datasetType.Valid() {
		api.writeError(w, r, http.StatusBadRequest, "invalid_dataset_type")
		return
	}

	if _, err := api.datasets.GetDataset(r.Context(), projectID, datasetID); err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	dv := domain.DatasetVersion{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		DatasetID: datasetID,
		Version:   version,
		Type:      datasetType,
		ObjectKey: fmt.Sprintf("%s/%s/data", datasetID, version),
		SizeBytes: req.SizeBytes,
		Metadata:  req.Metadata,
		CreatedAt: time.Now().UTC(),
		CreatedBy: identity.Subject,
	}
	if err := api.datasets.CreateDatasetVersion(r.Context(), dv); err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	api.audit(r, identity, "dataset_version.create", "dataset_version", dv.ID, map[string]any{
		"dataset_id": datasetID,
		"version":    version,
		"type":       string(datasetType),
	})

	resp := map[string]any{"version": datasetVersionToResponse(dv)}
	if api.store != nil {
		uploadURL, err := api.store.PresignPut(r.Context(), api.storeCfg.BucketDatasets, dv.ObjectKey, api.presignTTL)
		if err != nil {
			api.logger.Warn("dataset upload presign failed", "version_id", dv.ID, "error", err.Error())
		} else {
			resp["upload_url"] = uploadURL
			resp["upload_expires_in_seconds"] = int(api.presignTTL.Seconds())
		}
	}

	w.Header().Set("Location", "/projects/"+projectID+"/dataset-versions/"+dv.ID)
	api.writeJSON(w, http.StatusCreated, resp)
}

func (api *controlPlaneAPI) handleListDatasetVersions(w http.ResponseWriter, r *http.Request) {
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	datasetID := strings.TrimSpace(r.PathValue("dataset_id"))
	if datasetID == "" {
		api.writeError(w, r, http.StatusBadRequest, "dataset_id_required")
		return
	}
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)

	versions, err := api.datasets.ListDatasetVersions(r.Context(), repo.DatasetVersionFilter{
		ProjectID: projectID,
		DatasetID: datasetID,
		Limit:     limit,
	})
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	out := make([]datasetVersionResponse, 0, len(versions))
	for _, version := range versions {
		out = append(out, datasetVersionToResponse(version))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"versions": out})
}

func (api *controlPlaneAPI) handleGetDatasetVersion(w http.ResponseWriter, r *http.Request) {
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	versionID := strings.TrimSpace(r.PathValue("version_id"))
	if versionID == "" {
		api.writeError(w, r, http.StatusBadRequest, "version_id_required")
		return
	}

	version, err := api.datasets.GetDatasetVersion(r.Context(), projectID, versionID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, datasetVersionToResponse(version))
}

func (api *controlPlaneAPI) handleDatasetVersionURL(w http.ResponseWriter, r *http.Request) {
	projectID, ok := api.projectID(w, r)
	if !ok {
		return
	}
	versionID := strings.TrimSpace(r.PathValue("version_id"))
	if versionID == "" {
		api.writeError(w, r, http.StatusBadRequest, "version_id_required")
		return
	}
	if api.store == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}

	version, err := api.datasets.GetDatasetVersion(r.Context(), projectID, versionID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	downloadURL, err := api.store.PresignGet(r.Context(), api.storeCfg.BucketDatasets, version.ObjectKey, api.presignTTL)
	if err != nil {
		api.writeError(w, r, http.StatusBadGateway, "object_store_error")
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"download_url":       downloadURL,
		"expires_in_seconds": int(api.presignTTL.Seconds()),
	})
}
