// Package orchestrator submits compiled workflow manifests to the
// orchestration system and tracks their execution state.
package orchestrator

import (
	"context"
	"errors"

	"github.com/modelplane-labs/modelplane-go/internal/pipeline/argo"
)

var ErrWorkflowNotFound = errors.New("workflow not found")

// Orchestrator is the submission boundary between the control plane and
// the workflow engine.
type Orchestrator interface {
	Kind() string
	Submit(ctx context.Context, namespace string, workflow *argo.Workflow) error
	Status(ctx context.Context, namespace string, name string) (WorkflowState, error)
	Stop(ctx context.Context, namespace string, name string) error
}

// WorkflowState is the engine-reported execution state of a workflow.
type WorkflowState struct {
	Phase      string
	Message    string
	StartedAt  string
	FinishedAt string
}
