package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
	"github.com/modelplane-labs/modelplane-go/internal/repo"
)

type DatasetStore struct {
	db DB
}

func NewDatasetStore(db DB) *DatasetStore {
	if db == nil {
		return nil
	}
	return &DatasetStore{db: db}
}

func (s *DatasetStore) CreateDataset(ctx context.Context, dataset domain.Dataset) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("dataset store not initialized")
	}
	if err := dataset.Validate(); err != nil {
		return err
	}
	metadataJSON, err := encodeMetadata(dataset.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO datasets (
			dataset_id,
			project_id,
			name,
			description,
			metadata,
			created_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		strings.TrimSpace(dataset.ID),
		strings.TrimSpace(dataset.ProjectID),
		strings.TrimSpace(dataset.Name),
		nullIfEmpty(dataset.Description),
		metadataJSON,
		normalizeTime(dataset.CreatedAt),
		nullIfEmpty(dataset.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}
	return nil
}

func (s *DatasetStore) GetDataset(ctx context.Context, projectID, id string) (domain.Dataset, error) {
	if s == nil || s.db == nil {
		return domain.Dataset{}, fmt.Errorf("dataset store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return domain.Dataset{}, fmt.Errorf("project id is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Dataset{}, fmt.Errorf("dataset id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT dataset_id, project_id, name, description, metadata, created_at, created_by
		 FROM datasets
		 WHERE project_id = $1 AND dataset_id = $2`,
		projectID,
		id,
	)
	return scanDataset(row.Scan)
}

func (s *DatasetStore) ListDatasets(ctx context.Context, filter repo.DatasetFilter) ([]domain.Dataset, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("dataset store not initialized")
	}
	if strings.TrimSpace(filter.ProjectID) == "" {
		return nil, fmt.Errorf("project id is required")
	}
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 3)

	args = append(args, strings.TrimSpace(filter.ProjectID))
	clauses = append(clauses, fmt.Sprintf("project_id = $%d", len(args)))
	if strings.TrimSpace(filter.Name) != "" {
		args = append(args, strings.TrimSpace(filter.Name))
		clauses = append(clauses, fmt.Sprintf("name = $%d", len(args)))
	}

	query := `SELECT dataset_id, project_id, name, description, metadata, created_at, created_by
		FROM datasets WHERE ` + strings.Join(clauses, " AND ")
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	datasets := make([]domain.Dataset, 0)
	for rows.Next() {
		dataset, err := scanDataset(rows.Scan)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, dataset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return datasets, nil
}

func (s *DatasetStore) CreateDatasetVersion(ctx context.Context, version domain.DatasetVersion) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("dataset store not initialized")
	}
	if err := version.Validate(); err != nil {
		return err
	}
	metadataJSON, err := encodeMetadata(version.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO dataset_versions (
			version_id,
			project_id,
			dataset_id,
			version,
			dataset_type,
			object_key,
			size_bytes,
			metadata,
			created_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		strings.TrimSpace(version.ID),
		strings.TrimSpace(version.ProjectID),
		strings.TrimSpace(version.DatasetID),
		strings.TrimSpace(version.Version),
		string(version.Type),
		nullIfEmpty(version.ObjectKey),
		version.SizeBytes,
		metadataJSON,
		normalizeTime(version.CreatedAt),
		nullIfEmpty(version.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("insert dataset version: %w", err)
	}
	return nil
}

const datasetVersionColumns = `version_id, project_id, dataset_id, version, dataset_type,
	object_key, size_bytes, metadata, created_at, created_by`

func (s *DatasetStore) GetDatasetVersion(ctx context.Context, projectID, id string) (domain.DatasetVersion, error) {
	if s == nil || s.db == nil {
		return domain.DatasetVersion{}, fmt.Errorf("dataset store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return domain.DatasetVersion{}, fmt.Errorf("project id is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.DatasetVersion{}, fmt.Errorf("dataset version id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+datasetVersionColumns+`
		 FROM dataset_versions
		 WHERE project_id = $1 AND version_id = $2`,
		projectID,
		id,
	)
	return scanDatasetVersion(row.Scan)
}

func (s *DatasetStore) GetDatasetVersionByName(ctx context.Context, projectID, datasetName, version string) (domain.DatasetVersion, error) {
	if s == nil || s.db == nil {
		return domain.DatasetVersion{}, fmt.Errorf("dataset store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return domain.DatasetVersion{}, fmt.Errorf("project id is required")
	}
	datasetName = strings.TrimSpace(datasetName)
	if datasetName == "" {
		return domain.DatasetVersion{}, fmt.Errorf("dataset name is required")
	}
	version = strings.TrimSpace(version)
	if version == "" {
		return domain.DatasetVersion{}, fmt.Errorf("dataset version is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT v.version_id, v.project_id, v.dataset_id, v.version, v.dataset_type,
			v.object_key, v.size_bytes, v.metadata, v.created_at, v.created_by
		 FROM dataset_versions v
		 JOIN datasets d ON d.dataset_id = v.dataset_id AND d.project_id = v.project_id
		 WHERE v.project_id = $1 AND d.name = $2 AND v.version = $3`,
		projectID,
		datasetName,
		version,
	)
	return scanDatasetVersion(row.Scan)
}

func (s *DatasetStore) ListDatasetVersions(ctx context.Context, filter repo.DatasetVersionFilter) ([]domain.DatasetVersion, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("dataset store not initialized")
	}
	if strings.TrimSpace(filter.ProjectID) == "" {
		return nil, fmt.Errorf("project id is required")
	}
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 3)

	args = append(args, strings.TrimSpace(filter.ProjectID))
	clauses = append(clauses, fmt.Sprintf("project_id = $%d", len(args)))
	if strings.TrimSpace(filter.DatasetID) != "" {
		args = append(args, strings.TrimSpace(filter.DatasetID))
		clauses = append(clauses, fmt.Sprintf("dataset_id = $%d", len(args)))
	}

	query := `SELECT ` + datasetVersionColumns + ` FROM dataset_versions WHERE ` + strings.Join(clauses, " AND ")
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dataset versions: %w", err)
	}
	defer rows.Close()

	versions := make([]domain.DatasetVersion, 0)
	for rows.Next() {
		version, err := scanDatasetVersion(rows.Scan)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list dataset versions: %w", err)
	}
	return versions, nil
}

func scanDataset(scan func(dest ...any) error) (domain.Dataset, error) {
	var dataset domain.Dataset
	var description sql.NullString
	var metadataJSON []byte
	var createdBy sql.NullString
	if err := scan(&dataset.ID, &dataset.ProjectID, &dataset.Name, &description,
		&metadataJSON, &dataset.CreatedAt, &createdBy); err != nil {
		return domain.Dataset{}, handleNotFound(err)
	}
	if description.Valid {
		dataset.Description = description.String
	}
	if createdBy.Valid {
		dataset.CreatedBy = createdBy.String
	}
	metadata, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("decode metadata: %w", err)
	}
	dataset.Metadata = metadata
	dataset.CreatedAt = dataset.CreatedAt.UTC()
	return dataset, nil
}

func scanDatasetVersion(scan func(dest ...any) error) (domain.DatasetVersion, error) {
	var version domain.DatasetVersion
	var datasetType string
	var objectKey sql.NullString
	var metadataJSON []byte
	var createdBy sql.NullString
	if err := scan(&version.ID, &version.ProjectID, &version.DatasetID, &version.Version, &datasetType,
		&objectKey, &version.SizeBytes, &metadataJSON, &version.CreatedAt, &createdBy); err != nil {
		return domain.DatasetVersion{}, handleNotFound(err)
	}
	if objectKey.Valid {
		version.ObjectKey = objectKey.String
	}
	if createdBy.Valid {
		version.CreatedBy = createdBy.String
	}
	version.Type = domain.DatasetType(datasetType)
	metadata, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.DatasetVersion{}, fmt.Errorf("decode metadata: %w", err)
	}
	version.Metadata = metadata
	version.CreatedAt = version.CreatedAt.UTC()
	return version, nil
}
