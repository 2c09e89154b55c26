package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
	"github.com/modelplane-labs/modelplane-go/internal/repo"
)

type PipelineStore struct {
	db DB
}

func NewPipelineStore(db DB) *PipelineStore {
	if db == nil {
		return nil
	}
	return &PipelineStore{db: db}
}

func (s *PipelineStore) Create(ctx context.Context, pipeline domain.Pipeline) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("pipeline store not initialized")
	}
	if err := pipeline.Validate(); err != nil {
		return err
	}
	definitionJSON, err := json.Marshal(pipeline.Definition)
	if err != nil {
		return fmt.Errorf("encode definition: %w", err)
	}
	metadataJSON, err := encodeMetadata(pipeline.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO pipelines (
			pipeline_id,
			project_id,
			name,
			orchestration_system,
			namespace,
			workflow_name,
			status,
			definition,
			metadata,
			created_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		strings.TrimSpace(pipeline.ID),
		strings.TrimSpace(pipeline.ProjectID),
		strings.TrimSpace(pipeline.Name),
		strings.TrimSpace(pipeline.OrchestrationSystem),
		nullIfEmpty(pipeline.Namespace),
		nullIfEmpty(pipeline.WorkflowName),
		string(pipeline.Status),
		definitionJSON,
		metadataJSON,
		normalizeTime(pipeline.CreatedAt),
		nullIfEmpty(pipeline.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("insert pipeline: %w", err)
	}
	return nil
}

const pipelineColumns = `pipeline_id, project_id, name, orchestration_system, namespace, workflow_name,
	status, definition, metadata, created_at, created_by`

func (s *PipelineStore) Get(ctx context.Context, projectID, id string) (domain.Pipeline, error) {
	if s == nil || s.db == nil {
		return domain.Pipeline{}, fmt.Errorf("pipeline store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return domain.Pipeline{}, fmt.Errorf("project id is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Pipeline{}, fmt.Errorf("pipeline id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+pipelineColumns+`
		 FROM pipelines
		 WHERE project_id = $1 AND pipeline_id = $2`,
		projectID,
		id,
	)
	return scanPipeline(row.Scan)
}

func (s *PipelineStore) List(ctx context.Context, filter repo.PipelineFilter) ([]domain.Pipeline, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("pipeline store not initialized")
	}
	query, args, err := buildPipelineListQuery(filter)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	pipelines := make([]domain.Pipeline, 0)
	for rows.Next() {
		pipeline, err := scanPipeline(rows.Scan)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, pipeline)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	return pipelines, nil
}

func (s *PipelineStore) UpdateStatus(ctx context.Context, projectID, id string, status domain.PipelineStatus) error {
	return s.UpdateSubmission(ctx, projectID, id, status, "")
}

func (s *PipelineStore) UpdateSubmission(ctx context.Context, projectID, id string, status domain.PipelineStatus, workflowName string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("pipeline store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return fmt.Errorf("project id is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("pipeline id is required")
	}
	if !status.Valid() {
		return fmt.Errorf("invalid pipeline status: %q", string(status))
	}

	var res sql.Result
	var err error
	if strings.TrimSpace(workflowName) == "" {
		res, err = s.db.ExecContext(
			ctx,
			`UPDATE pipelines SET status = $1 WHERE project_id = $2 AND pipeline_id = $3`,
			string(status),
			projectID,
			id,
		)
	} else {
		res, err = s.db.ExecContext(
			ctx,
			`UPDATE pipelines SET status = $1, workflow_name = $2 WHERE project_id = $3 AND pipeline_id = $4`,
			string(status),
			strings.TrimSpace(workflowName),
			projectID,
			id,
		)
	}
	if err != nil {
		return fmt.Errorf("update pipeline: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update pipeline: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func buildPipelineListQuery(filter repo.PipelineFilter) (string, []any, error) {
	if strings.TrimSpace(filter.ProjectID) == "" {
		return "", nil, fmt.Errorf("project id is required")
	}
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 3)

	args = append(args, strings.TrimSpace(filter.ProjectID))
	clauses = append(clauses, fmt.Sprintf("project_id = $%d", len(args)))
	if strings.TrimSpace(string(filter.Status)) != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + pipelineColumns + ` FROM pipelines WHERE ` + strings.Join(clauses, " AND ")
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args, nil
}

func scanPipeline(scan func(dest ...any) error) (domain.Pipeline, error) {
	var pipeline domain.Pipeline
	var namespace sql.NullString
	var workflowName sql.NullString
	var status string
	var definitionJSON []byte
	var metadataJSON []byte
	var createdBy sql.NullString
	if err := scan(&pipeline.ID, &pipeline.ProjectID, &pipeline.Name, &pipeline.OrchestrationSystem,
		&namespace, &workflowName, &status, &definitionJSON, &metadataJSON, &pipeline.CreatedAt, &createdBy); err != nil {
		return domain.Pipeline{}, handleNotFound(err)
	}
	if namespace.Valid {
		pipeline.Namespace = namespace.String
	}
	if workflowName.Valid {
		pipeline.WorkflowName = workflowName.String
	}
	if createdBy.Valid {
		pipeline.CreatedBy = createdBy.String
	}
	pipeline.Status = domain.PipelineStatus(status)
	if len(definitionJSON) > 0 {
		if err := json.Unmarshal(definitionJSON, &pipeline.Definition); err != nil {
			return domain.Pipeline{}, fmt.Errorf("decode definition: %w", err)
		}
	}
	metadata, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.Pipeline{}, fmt.Errorf("decode metadata: %w", err)
	}
	pipeline.Metadata = metadata
	pipeline.CreatedAt = pipeline.CreatedAt.UTC()
	return pipeline, nil
}
