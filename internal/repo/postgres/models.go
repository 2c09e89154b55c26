package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
	"github.com/modelplane-labs/modelplane-go/internal/repo"
)

type ModelStore struct {
	db DB
}

func NewModelStore(db DB) *ModelStore {
	if db == nil {
		return nil
	}
	return &ModelStore{db: db}
}

func (s *ModelStore) Create(ctx context.Context, model domain.Model) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("model store not initialized")
	}
	if err := model.Validate(); err != nil {
		return err
	}
	metadataJSON, err := encodeMetadata(model.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO models (
			model_id,
			project_id,
			name,
			version,
			family,
			max_position_embeddings,
			status,
			artifact_key,
			source_train_job_id,
			metadata,
			created_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		strings.TrimSpace(model.ID),
		strings.TrimSpace(model.ProjectID),
		strings.TrimSpace(model.Name),
		strings.TrimSpace(model.Version),
		strings.ToLower(strings.TrimSpace(model.Family)),
		model.MaxPositionEmbeddings,
		string(model.Status),
		nullIfEmpty(model.ArtifactKey),
		nullIfEmpty(model.SourceTrainJobID),
		metadataJSON,
		normalizeTime(model.CreatedAt),
		nullIfEmpty(model.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("insert model: %w", err)
	}
	return nil
}

const modelColumns = `model_id, project_id, name, version, family, max_position_embeddings,
	status, artifact_key, source_train_job_id, metadata, created_at, created_by`

func (s *ModelStore) Get(ctx context.Context, projectID, id string) (domain.Model, error) {
	if s == nil || s.db == nil {
		return domain.Model{}, fmt.Errorf("model store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return domain.Model{}, fmt.Errorf("project id is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Model{}, fmt.Errorf("model id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+modelColumns+`
		 FROM models
		 WHERE project_id = $1 AND model_id = $2`,
		projectID,
		id,
	)
	return scanModel(row.Scan)
}

func (s *ModelStore) GetByNameVersion(ctx context.Context, projectID, name, version string) (domain.Model, error) {
	if s == nil || s.db == nil {
		return domain.Model{}, fmt.Errorf("model store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return domain.Model{}, fmt.Errorf("project id is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Model{}, fmt.Errorf("model name is required")
	}
	version = strings.TrimSpace(version)
	if version == "" {
		return domain.Model{}, fmt.Errorf("model version is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+modelColumns+`
		 FROM models
		 WHERE project_id = $1 AND name = $2 AND version = $3`,
		projectID,
		name,
		version,
	)
	return scanModel(row.Scan)
}

func (s *ModelStore) List(ctx context.Context, filter repo.ModelFilter) ([]domain.Model, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("model store not initialized")
	}
	if strings.TrimSpace(filter.ProjectID) == "" {
		return nil, fmt.Errorf("project id is required")
	}
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 5)

	args = append(args, strings.TrimSpace(filter.ProjectID))
	clauses = append(clauses, fmt.Sprintf("project_id = $%d", len(args)))
	if strings.TrimSpace(filter.Name) != "" {
		args = append(args, strings.TrimSpace(filter.Name))
		clauses = append(clauses, fmt.Sprintf("name = $%d", len(args)))
	}
	if strings.TrimSpace(filter.Family) != "" {
		args = append(args, strings.ToLower(strings.TrimSpace(filter.Family)))
		clauses = append(clauses, fmt.Sprintf("family = $%d", len(args)))
	}
	if strings.TrimSpace(string(filter.Status)) != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + modelColumns + ` FROM models WHERE ` + strings.Join(clauses, " AND ")
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	models := make([]domain.Model, 0)
	for rows.Next() {
		model, err := scanModel(rows.Scan)
		if err != nil {
			return nil, err
		}
		models = append(models, model)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return models, nil
}

func (s *ModelStore) UpdateStatus(ctx context.Context, projectID, id string, status domain.ModelStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("model store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return fmt.Errorf("project id is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("model id is required")
	}
	if !status.Valid() {
		return fmt.Errorf("invalid model status: %q", string(status))
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE models SET status = $1 WHERE project_id = $2 AND model_id = $3`,
		string(status),
		projectID,
		id,
	)
	if err != nil {
		return fmt.Errorf("update model status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update model status: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func scanModel(scan func(dest ...any) error) (domain.Model, error) {
	var model domain.Model
	var status string
	var artifactKey sql.NullString
	var sourceTrainJobID sql.NullString
	var metadataJSON []byte
	var createdBy sql.NullString
	if err := scan(&model.ID, &model.ProjectID, &model.Name, &model.Version, &model.Family,
		&model.MaxPositionEmbeddings, &status, &artifactKey, &sourceTrainJobID,
		&metadataJSON, &model.CreatedAt, &createdBy); err != nil {
		return domain.Model{}, handleNotFound(err)
	}
	if artifactKey.Valid {
		model.ArtifactKey = artifactKey.String
	}
	if sourceTrainJobID.Valid {
		model.SourceTrainJobID = sourceTrainJobID.String
	}
	if createdBy.Valid {
		model.CreatedBy = createdBy.String
	}
	model.Status = domain.ModelStatus(status)
	metadata, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.Model{}, fmt.Errorf("decode metadata: %w", err)
	}
	model.Metadata = metadata
	model.CreatedAt = model.CreatedAt.UTC()
	return model, nil
}
