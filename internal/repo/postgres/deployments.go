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

type DeploymentStore struct {
	db DB
}

func NewDeploymentStore(db DB) *DeploymentStore {
	if db == nil {
		return nil
	}
	return &DeploymentStore{db: db}
}

func (s *DeploymentStore) Create(ctx context.Context, deployment domain.Deployment) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("deployment store not initialized")
	}
	if err := deployment.Validate(); err != nil {
		return err
	}
	specJSON, err := json.Marshal(deployment.Spec)
	if err != nil {
		return fmt.Errorf("encode spec: %w", err)
	}
	metadataJSON, err := encodeMetadata(deployment.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO deployments (
			deployment_id,
			project_id,
			train_job_id,
			serve_target,
			status,
			endpoint_url,
			spec,
			metadata,
			created_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		strings.TrimSpace(deployment.ID),
		strings.TrimSpace(deployment.ProjectID),
		nullIfEmpty(deployment.TrainJobID),
		string(deployment.Spec.ServeTarget),
		string(deployment.Status),
		nullIfEmpty(deployment.EndpointURL),
		specJSON,
		metadataJSON,
		normalizeTime(deployment.CreatedAt),
		nullIfEmpty(deployment.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("insert deployment: %w", err)
	}
	return nil
}

const deploymentColumns = `deployment_id, project_id, train_job_id, status, endpoint_url, spec, metadata, created_at, created_by`

func (s *DeploymentStore) Get(ctx context.Context, projectID, id string) (domain.Deployment, error) {
	if s == nil || s.db == nil {
		return domain.Deployment{}, fmt.Errorf("deployment store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return domain.Deployment{}, fmt.Errorf("project id is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Deployment{}, fmt.Errorf("deployment id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+deploymentColumns+`
		 FROM deployments
		 WHERE project_id = $1 AND deployment_id = $2`,
		projectID,
		id,
	)
	return scanDeployment(row.Scan)
}

func (s *DeploymentStore) List(ctx context.Context, filter repo.DeploymentFilter) ([]domain.Deployment, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("deployment store not initialized")
	}
	if strings.TrimSpace(filter.ProjectID) == "" {
		return nil, fmt.Errorf("project id is required")
	}
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 3)

	args = append(args, strings.TrimSpace(filter.ProjectID))
	clauses = append(clauses, fmt.Sprintf("project_id = $%d", len(args)))
	if strings.TrimSpace(string(filter.Status)) != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE ` + strings.Join(clauses, " AND ")
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	deployments := make([]domain.Deployment, 0)
	for rows.Next() {
		deployment, err := scanDeployment(rows.Scan)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, deployment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	return deployments, nil
}

func (s *DeploymentStore) UpdateStatus(ctx context.Context, projectID, id string, status domain.DeploymentStatus, endpointURL string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("deployment store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return fmt.Errorf("project id is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("deployment id is required")
	}
	if !status.Valid() {
		return fmt.Errorf("invalid deployment status: %q", string(status))
	}

	var res sql.Result
	var err error
	if strings.TrimSpace(endpointURL) == "" {
		res, err = s.db.ExecContext(
			ctx,
			`UPDATE deployments SET status = $1 WHERE project_id = $2 AND deployment_id = $3`,
			string(status),
			projectID,
			id,
		)
	} else {
		res, err = s.db.ExecContext(
			ctx,
			`UPDATE deployments SET status = $1, endpoint_url = $2 WHERE project_id = $3 AND deployment_id = $4`,
			string(status),
			strings.TrimSpace(endpointURL),
			projectID,
			id,
		)
	}
	if err != nil {
		return fmt.Errorf("update deployment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update deployment: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func scanDeployment(scan func(dest ...any) error) (domain.Deployment, error) {
	var deployment domain.Deployment
	var trainJobID sql.NullString
	var status string
	var endpointURL sql.NullString
	var specJSON []byte
	var metadataJSON []byte
	var createdBy sql.NullString
	if err := scan(&deployment.ID, &deployment.ProjectID, &trainJobID, &status, &endpointURL,
		&specJSON, &metadataJSON, &deployment.CreatedAt, &createdBy); err != nil {
		return domain.Deployment{}, handleNotFound(err)
	}
	if trainJobID.Valid {
		deployment.TrainJobID = trainJobID.String
	}
	if endpointURL.Valid {
		deployment.EndpointURL = endpointURL.String
	}
	if createdBy.Valid {
		deployment.CreatedBy = createdBy.String
	}
	deployment.Status = domain.DeploymentStatus(status)
	if len(specJSON) > 0 {
		if err := json.Unmarshal(specJSON, &deployment.Spec); err != nil {
			return domain.Deployment{}, fmt.Errorf("decode spec: %w", err)
		}
	}
	metadata, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.Deployment{}, fmt.Errorf("decode metadata: %w", err)
	}
	deployment.Metadata = metadata
	deployment.CreatedAt = deployment.CreatedAt.UTC()
	return deployment, nil
}
