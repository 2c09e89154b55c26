package argo

import (
	"errors"
	"strings"
	"testing"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
)

func sampleStages() []domain.Stage {
	return []domain.Stage{
		{Name: "validate", Type: domain.StageTypeDataValidation},
		{Name: "train", Type: domain.StageTypeTraining, Dependencies: []string{"validate"}},
		{Name: "eval", Type: domain.StageTypeEvaluation, Dependencies: []string{"train"}},
	}
}

func TestBuildCompilesWorkflow(t *testing.T) {
	wf, err := NewBuilder().Build("pipe-1", "nightly finetune", sampleStages(), "ml-pipelines", 3, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if wf.APIVersion != "argoproj.io/v1alpha1" || wf.Kind != "Workflow" {
		t.Fatalf("unexpected type meta %s/%s", wf.APIVersion, wf.Kind)
	}
	if wf.Metadata.Namespace != "ml-pipelines" {
		t.Fatalf("unexpected namespace %q", wf.Metadata.Namespace)
	}
	if wf.Metadata.Name != GenerateWorkflowName("nightly finetune", "pipe-1") {
		t.Fatalf("unexpected workflow name %q", wf.Metadata.Name)
	}
	if wf.Metadata.Labels["modelplane.io/pipeline-id"] != "pipe-1" {
		t.Fatalf("unexpected labels %v", wf.Metadata.Labels)
	}
	if wf.Spec.Entrypoint != "main" {
		t.Fatalf("unexpected entrypoint %q", wf.Spec.Entrypoint)
	}
	if wf.Spec.RetryStrategy == nil || wf.Spec.RetryStrategy.Limit != 3 {
		t.Fatalf("unexpected retry strategy %+v", wf.Spec.RetryStrategy)
	}

	// One template per stage plus the DAG entrypoint template.
	if len(wf.Spec.Templates) != 4 {
		t.Fatalf("expected 4 templates, got %d", len(wf.Spec.Templates))
	}
	dag := wf.Spec.Templates[len(wf.Spec.Templates)-1]
	if dag.Name != "main" || dag.DAG == nil {
		t.Fatalf("expected trailing DAG template, got %+v", dag)
	}
	if len(dag.DAG.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(dag.DAG.Tasks))
	}
	if deps := dag.DAG.Tasks[1].Dependencies; len(deps) != 1 || deps[0] != "validate" {
		t.Fatalf("unexpected dependencies %v", deps)
	}
}

func TestBuildAppliesStageTypeDefaults(t *testing.T) {
	wf, err := NewBuilder().Build("pipe-1", "defaults", sampleStages(), "", 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	train := wf.Spec.Templates[1]
	if train.Container == nil {
		t.Fatalf("expected container template")
	}
	if train.Container.Image != "modelplane/trainer:latest" {
		t.Fatalf("unexpected image %q", train.Container.Image)
	}
	if len(train.Container.Command) == 0 || train.Container.Command[0] != "python" {
		t.Fatalf("unexpected command %v", train.Container.Command)
	}
	if train.Container.Resources != nil {
		t.Fatalf("expected no resources block, got %+v", train.Container.Resources)
	}
}

func TestBuildStageConfigOverridesDefaults(t *testing.T) {
	stages := []domain.Stage{
		{
			Name: "train",
			Type: domain.StageTypeTraining,
			Config: domain.StageConfig{
				Image:   "registry.local/custom-trainer:v2",
				Command: []string{"torchrun"},
				Env:     map[string]string{"B_VAR": "2", "A_VAR": "1"},
				Resources: domain.StageResources{
					CPU:    "4",
					Memory: "16Gi",
					GPU:    "1",
				},
			},
		},
	}

	wf, err := NewBuilder().Build("pipe-1", "custom", stages, "", 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	container := wf.Spec.Templates[0].Container
	if container.Image != "registry.local/custom-trainer:v2" {
		t.Fatalf("unexpected image %q", container.Image)
	}
	if len(container.Command) != 1 || container.Command[0] != "torchrun" {
		t.Fatalf("unexpected command %v", container.Command)
	}

	// Env vars come out sorted by name for deterministic manifests.
	if len(container.Env) != 2 || container.Env[0].Name != "A_VAR" || container.Env[1].Name != "B_VAR" {
		t.Fatalf("unexpected env %v", container.Env)
	}

	res := container.Resources
	if res == nil {
		t.Fatalf("expected resources block")
	}
	if res.Requests["cpu"] != "4" || res.Requests["memory"] != "16Gi" || res.Requests["nvidia.com/gpu"] != "1" {
		t.Fatalf("unexpected requests %v", res.Requests)
	}
	if res.Limits != nil {
		t.Fatalf("expected no limits, got %v", res.Limits)
	}
}

func TestBuildRendersConditionExpressions(t *testing.T) {
	stages := []domain.Stage{
		{Name: "eval", Type: domain.StageTypeEvaluation},
		{
			Name:         "deploy",
			Type:         domain.StageTypeDeployment,
			Dependencies: []string{"eval"},
			Condition: &domain.StageCondition{
				Task:     "eval",
				Operator: ">=",
				Value:    "0.9",
			},
		},
		{
			Name:         "notify",
			Type:         domain.StageTypeEvaluation,
			Dependencies: []string{"eval"},
			Condition: &domain.StageCondition{
				Field:    "workflow.parameters.channel",
				Operator: "==",
				Value:    "slack",
			},
		},
	}

	wf, err := NewBuilder().Build("pipe-1", "gated", stages, "", 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tasks := wf.Spec.Templates[len(wf.Spec.Templates)-1].DAG.Tasks
	if tasks[1].When != "{{tasks.eval.outputs.result}} >= 0.9" {
		t.Fatalf("unexpected task condition %q", tasks[1].When)
	}
	if tasks[2].When != "workflow.parameters.channel == slack" {
		t.Fatalf("unexpected field condition %q", tasks[2].When)
	}
}

func TestBuildRejectsInvariantViolations(t *testing.T) {
	builder := NewBuilder()

	tests := []struct {
		name       string
		pipelineID string
		stages     []domain.Stage
		maxRetries int
	}{
		{name: "empty pipeline id", pipelineID: "  ", stages: sampleStages()},
		{name: "no stages", pipelineID: "pipe-1"},
		{
			name:       "duplicate stages",
			pipelineID: "pipe-1",
			stages: []domain.Stage{
				{Name: "a", Type: domain.StageTypeTraining},
				{Name: "a", Type: domain.StageTypeTraining},
			},
		},
		{
			name:       "unknown dependency",
			pipelineID: "pipe-1",
			stages: []domain.Stage{
				{Name: "a", Type: domain.StageTypeTraining, Dependencies: []string{"ghost"}},
			},
		},
		{
			name:       "cycle",
			pipelineID: "pipe-1",
			stages: []domain.Stage{
				{Name: "a", Type: domain.StageTypeTraining, Dependencies: []string{"b"}},
				{Name: "b", Type: domain.StageTypeTraining, Dependencies: []string{"a"}},
			},
		},
		{name: "negative retries", pipelineID: "pipe-1", stages: sampleStages(), maxRetries: -1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := builder.Build(tc.pipelineID, "pipeline", tc.stages, "", tc.maxRetries, "")
			if err == nil {
				t.Fatalf("expected error")
			}
			var internalErr *InternalError
			if !errors.As(err, &internalErr) {
				t.Fatalf("expected *InternalError, got %T: %v", err, err)
			}
		})
	}
}

func TestBuildUnknownStageTypeGetsFailingPlaceholder(t *testing.T) {
	stages := []domain.Stage{{Name: "mystery", Type: domain.StageType("mystery")}}

	wf, err := NewBuilder().Build("pipe-1", "mystery", stages, "", 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	container := wf.Spec.Templates[0].Container
	if container.Image != "alpine:3.20" {
		t.Fatalf("unexpected image %q", container.Image)
	}
	if len(container.Args) != 1 || !strings.Contains(container.Args[0], "exit 1") {
		t.Fatalf("expected failing placeholder args, got %v", container.Args)
	}
}
