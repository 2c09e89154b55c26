package domain

import (
	"strings"
	"time"
)

// Dataset is a top-level dataset entity scoped to a project.
type Dataset struct {
	ID          string
	ProjectID   string
	Name        string
	Description string
	Metadata    Metadata
	CreatedAt   time.Time
	CreatedBy   string
}

// DatasetVersion is an immutable snapshot of a dataset. Type drives
// job-type compatibility checks at training submission time.
type DatasetVersion struct {
	ID        string
	ProjectID string
	DatasetID string
	Version   string
	Type      DatasetType
	ObjectKey string
	SizeBytes int64
	Metadata  Metadata
	CreatedAt time.Time
	CreatedBy string
}

func (d Dataset) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errRequired("dataset id")
	}
	if strings.TrimSpace(d.ProjectID) == "" {
		return errRequired("project id")
	}
	if strings.TrimSpace(d.Name) == "" {
		return errRequired("dataset name")
	}
	return nil
}

func (v DatasetVersion) Validate() error {
	if strings.TrimSpace(v.ID) == "" {
		return errRequired("dataset version id")
	}
	if strings.TrimSpace(v.ProjectID) == "" {
		return errRequired("project id")
	}
	if strings.TrimSpace(v.DatasetID) == "" {
		return errRequired("dataset id")
	}
	if strings.TrimSpace(v.Version) == "" {
		return errRequired("dataset version")
	}
	if !v.Type.Valid() {
		return errInvalid("dataset type", string(v.Type))
	}
	return nil
}
