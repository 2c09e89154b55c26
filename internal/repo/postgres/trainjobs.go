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

type TrainJobStore struct {
	db DB
}

func NewTrainJobStore(db DB) *TrainJobStore {
	if db == nil {
		return nil
	}
	return &TrainJobStore{db: db}
}

func (s *TrainJobStore) Create(ctx context.Context, job domain.TrainJob) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("train job store not initialized")
	}
	if err := job.Validate(); err != nil {
		return err
	}
	specJSON, err := json.Marshal(job.Spec)
	if err != nil {
		return fmt.Errorf("encode spec: %w", err)
	}
	metadataJSON, err := encodeMetadata(job.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO train_jobs (
			job_id,
			project_id,
			job_type,
			model_family,
			status,
			tracking_run,
			spec,
			metadata,
			created_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		strings.TrimSpace(job.ID),
		strings.TrimSpace(job.ProjectID),
		string(job.Spec.JobType),
		strings.ToLower(strings.TrimSpace(job.Spec.ModelFamily)),
		string(job.Status),
		nullIfEmpty(job.TrackingRun),
		specJSON,
		metadataJSON,
		normalizeTime(job.CreatedAt),
		nullIfEmpty(job.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("insert train job: %w", err)
	}
	return nil
}

const trainJobColumns = `job_id, project_id, status, tracking_run, spec, metadata, created_at, created_by`

func (s *TrainJobStore) Get(ctx context.Context, projectID, id string) (domain.TrainJob, error) {
	if s == nil || s.db == nil {
		return domain.TrainJob{}, fmt.Errorf("train job store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return domain.TrainJob{}, fmt.Errorf("project id is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.TrainJob{}, fmt.Errorf("train job id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+trainJobColumns+`
		 FROM train_jobs
		 WHERE project_id = $1 AND job_id = $2`,
		projectID,
		id,
	)
	return scanTrainJob(row.Scan)
}

func (s *TrainJobStore) List(ctx context.Context, filter repo.TrainJobFilter) ([]domain.TrainJob, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("train job store not initialized")
	}
	query, args, err := buildTrainJobListQuery(filter)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list train jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]domain.TrainJob, 0)
	for rows.Next() {
		job, err := scanTrainJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list train jobs: %w", err)
	}
	return jobs, nil
}

func (s *TrainJobStore) UpdateStatus(ctx context.Context, projectID, id string, status domain.TrainJobStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("train job store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return fmt.Errorf("project id is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("train job id is required")
	}
	if !status.Valid() {
		return fmt.Errorf("invalid train job status: %q", string(status))
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE train_jobs SET status = $1 WHERE project_id = $2 AND job_id = $3`,
		string(status),
		projectID,
		id,
	)
	if err != nil {
		return fmt.Errorf("update train job status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update train job status: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *TrainJobStore) UpdateTrackingRun(ctx context.Context, projectID, id string, trackingRun string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("train job store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return fmt.Errorf("project id is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("train job id is required")
	}
	trackingRun = strings.TrimSpace(trackingRun)
	if trackingRun == "" {
		return fmt.Errorf("tracking run is required")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE train_jobs SET tracking_run = $1 WHERE project_id = $2 AND job_id = $3`,
		trackingRun,
		projectID,
		id,
	)
	if err != nil {
		return fmt.Errorf("update tracking run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tracking run: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func buildTrainJobListQuery(filter repo.TrainJobFilter) (string, []any, error) {
	if strings.TrimSpace(filter.ProjectID) == "" {
		return "", nil, fmt.Errorf("project id is required")
	}
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 4)

	args = append(args, strings.TrimSpace(filter.ProjectID))
	clauses = append(clauses, fmt.Sprintf("project_id = $%d", len(args)))
	if strings.TrimSpace(string(filter.JobType)) != "" {
		args = append(args, string(filter.JobType))
		clauses = append(clauses, fmt.Sprintf("job_type = $%d", len(args)))
	}
	if strings.TrimSpace(string(filter.Status)) != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + trainJobColumns + ` FROM train_jobs WHERE ` + strings.Join(clauses, " AND ")
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args, nil
}

func scanTrainJob(scan func(dest ...any) error) (domain.TrainJob, error) {
	var job domain.TrainJob
	var status string
	var trackingRun sql.NullString
	var specJSON []byte
	var metadataJSON []byte
	var createdBy sql.NullString
	if err := scan(&job.ID, &job.ProjectID, &status, &trackingRun, &specJSON, &metadataJSON, &job.CreatedAt, &createdBy); err != nil {
		return domain.TrainJob{}, handleNotFound(err)
	}
	job.Status = domain.TrainJobStatus(status)
	if trackingRun.Valid {
		job.TrackingRun = trackingRun.String
	}
	if createdBy.Valid {
		job.CreatedBy = createdBy.String
	}
	if len(specJSON) > 0 {
		if err := json.Unmarshal(specJSON, &job.Spec); err != nil {
			return domain.TrainJob{}, fmt.Errorf("decode spec: %w", err)
		}
	}
	metadata, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.TrainJob{}, fmt.Errorf("decode metadata: %w", err)
	}
	job.Metadata = metadata
	job.CreatedAt = job.CreatedAt.UTC()
	return job, nil
}
