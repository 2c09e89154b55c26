package domain

import (
	"strings"
	"time"
)

// ModelStatus represents the lifecycle state of a cataloged model.
type ModelStatus string

const (
	ModelStatusDraft      ModelStatus = "draft"
	ModelStatusValidated  ModelStatus = "validated"
	ModelStatusApproved   ModelStatus = "approved"
	ModelStatusDeprecated ModelStatus = "deprecated"
)

func (s ModelStatus) Valid() bool {
	switch s {
	case ModelStatusDraft, ModelStatusValidated, ModelStatusApproved, ModelStatusDeprecated:
		return true
	default:
		return false
	}
}

// Model is a versioned catalog entry. Family and MaxPositionEmbeddings feed
// the train/deploy compatibility validators.
type Model struct {
	ID                    string
	ProjectID             string
	Name                  string
	Version               string
	Family                string
	MaxPositionEmbeddings int
	Status                ModelStatus
	ArtifactKey           string
	SourceTrainJobID      string
	Metadata              Metadata
	CreatedAt             time.Time
	CreatedBy             string
}

func (m Model) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return errRequired("model id")
	}
	if strings.TrimSpace(m.ProjectID) == "" {
		return errRequired("project id")
	}
	if strings.TrimSpace(m.Name) == "" {
		return errRequired("model name")
	}
	if m.MaxPositionEmbeddings < 0 {
		return errInvalid("max position embeddings", "negative")
	}
	if !m.Status.Valid() {
		return errInvalid("model status", string(m.Status))
	}
	return nil
}
