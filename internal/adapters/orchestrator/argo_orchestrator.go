package orchestrator

import (
	"context"
	"errors"
	"strings"

	"github.com/modelplane-labs/modelplane-go/internal/pipeline/argo"
	"github.com/modelplane-labs/modelplane-go/internal/platform/k8s"
)

var workflowsGVR = k8s.GroupVersionResource{
	Group:    "argoproj.io",
	Version:  "v1alpha1",
	Resource: "workflows",
}

type ArgoOrchestrator struct {
	client    *k8s.Client
	namespace string
}

func NewArgoOrchestrator(client *k8s.Client, namespace string) (*ArgoOrchestrator, error) {
	if client == nil {
		return nil, errors.New("k8s client is required")
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = strings.TrimSpace(client.Namespace())
	}
	if namespace == "" {
		return nil, errors.New("workflow namespace is required")
	}
	return &ArgoOrchestrator{client: client, namespace: namespace}, nil
}

func (o *ArgoOrchestrator) Kind() string {
	return "argo_workflows"
}

func (o *ArgoOrchestrator) Submit(ctx context.Context, namespace string, workflow *argo.Workflow) error {
	if workflow == nil {
		return errors.New("workflow is required")
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = o.namespace
	}
	workflow.Metadata.Namespace = namespace
	return o.client.Create(ctx, workflowsGVR, namespace, workflow, nil)
}

func (o *ArgoOrchestrator) Status(ctx context.Context, namespace string, name string) (WorkflowState, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return WorkflowState{}, errors.New("workflow name is required")
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = o.namespace
	}

	var wf argo.Workflow
	if err := o.client.Get(ctx, workflowsGVR, namespace, name, &wf); err != nil {
		if errors.Is(err, k8s.ErrNotFound) {
			return WorkflowState{}, ErrWorkflowNotFound
		}
		return WorkflowState{}, err
	}
	return WorkflowState{
		Phase:      wf.Status.Phase,
		Message:    wf.Status.Message,
		StartedAt:  wf.Status.StartedAt,
		FinishedAt: wf.Status.FinishedAt,
	}, nil
}

func (o *ArgoOrchestrator) Stop(ctx context.Context, namespace string, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("workflow name is required")
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = o.namespace
	}
	if err := o.client.Delete(ctx, workflowsGVR, namespace, name); err != nil {
		if errors.Is(err, k8s.ErrNotFound) {
			return ErrWorkflowNotFound
		}
		return err
	}
	return nil
}
