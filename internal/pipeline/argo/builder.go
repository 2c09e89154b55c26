package argo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
)

// InternalError signals that an invariant the parser should have enforced
// was violated at compile time. It is reported as an internal failure, not
// a user input error.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string {
	return "workflow compiler invariant violated: " + e.Reason
}

func internalErrorf(format string, args ...any) error {
	return &InternalError{Reason: fmt.Sprintf(format, args...)}
}

// Builder compiles validated stage lists into Workflow manifests.
type Builder struct {
	defaults TemplateDefaults
}

func NewBuilder() *Builder {
	return &Builder{defaults: builtinTemplateDefaults()}
}

func NewBuilderWithDefaults(defaults TemplateDefaults) *Builder {
	if len(defaults) == 0 {
		return NewBuilder()
	}
	return &Builder{defaults: defaults}
}

// Build compiles a workflow manifest from validated stages. Stages are
// re-checked for duplicates and cycles; the builder never trusts that its
// caller ran the parser.
func (b *Builder) Build(pipelineID, pipelineName string, stages []domain.Stage, namespace string, maxRetries int, entrypoint string) (*Workflow, error) {
	if strings.TrimSpace(pipelineID) == "" {
		return nil, internalErrorf("pipeline id is empty")
	}
	if strings.TrimSpace(pipelineName) == "" {
		return nil, internalErrorf("pipeline name is empty")
	}
	if len(stages) == 0 {
		return nil, internalErrorf("stage list is empty")
	}
	if err := revalidateStages(stages); err != nil {
		return nil, err
	}

	entrypoint = strings.TrimSpace(entrypoint)
	if entrypoint == "" {
		entrypoint = "main"
	}
	if maxRetries < 0 {
		return nil, internalErrorf("max retries is negative")
	}

	templates := make([]Template, 0, len(stages)+1)
	tasks := make([]DAGTask, 0, len(stages))
	for _, stage := range stages {
		templates = append(templates, b.stageTemplate(stage))

		task := DAGTask{
			Name:     stage.Name,
			Template: stage.Name,
		}
		if len(stage.Dependencies) > 0 {
			task.Dependencies = append([]string{}, stage.Dependencies...)
		}
		if stage.Condition != nil {
			task.When = conditionExpression(*stage.Condition)
		}
		tasks = append(tasks, task)
	}
	templates = append(templates, Template{
		Name: entrypoint,
		DAG:  &DAGTemplate{Tasks: tasks},
	})

	workflowName := GenerateWorkflowName(pipelineName, pipelineID)
	return &Workflow{
		APIVersion: workflowAPIVersion,
		Kind:       workflowKind,
		Metadata: ObjectMeta{
			Name:      workflowName,
			Namespace: strings.TrimSpace(namespace),
			Labels: map[string]string{
				"app.kubernetes.io/name":      "modelplane",
				"app.kubernetes.io/component": "pipeline",
				"modelplane.io/pipeline-id":   strings.TrimSpace(pipelineID),
			},
			Annotations: map[string]string{
				"modelplane.io/pipeline-name": strings.TrimSpace(pipelineName),
			},
		},
		Spec: WorkflowSpec{
			Entrypoint:    entrypoint,
			RetryStrategy: &RetryStrategy{Limit: maxRetries},
			Templates:     templates,
			Arguments:     Arguments{Parameters: []Parameter{}},
		},
	}, nil
}

func (b *Builder) stageTemplate(stage domain.Stage) Template {
	container := Container{
		Image:   strings.TrimSpace(stage.Config.Image),
		Command: stage.Config.Command,
		Args:    stage.Config.Args,
	}

	if def, ok := b.defaults[stage.Type]; ok {
		if container.Image == "" {
			container.Image = def.Image
		}
		if len(container.Command) == 0 {
			container.Command = append([]string{}, def.Command...)
		}
	} else {
		// Unknown stage types get a loudly failing placeholder rather
		// than a silent no-op.
		if container.Image == "" {
			container.Image = "alpine:3.20"
		}
		if len(container.Command) == 0 {
			container.Command = []string{"sh", "-c"}
			container.Args = []string{fmt.Sprintf("echo 'no template registered for stage type %q'; exit 1", string(stage.Type))}
		}
	}

	if len(stage.Config.Env) > 0 {
		keys := make([]string, 0, len(stage.Config.Env))
		for k := range stage.Config.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			container.Env = append(container.Env, EnvVar{Name: k, Value: stage.Config.Env[k]})
		}
	}

	container.Resources = buildResources(stage.Config.Resources)

	return Template{
		Name:      stage.Name,
		Container: &container,
	}
}

// buildResources populates requests/limits only from keys the stage config
// actually supplies and returns nil when none are present. Downstream
// consumers distinguish an absent resources block from an empty one.
func buildResources(res domain.StageResources) *Resources {
	if res.Empty() {
		return nil
	}

	out := &Resources{}
	requests := map[string]string{}
	if res.CPU != "" {
		requests["cpu"] = res.CPU
	}
	if res.Memory != "" {
		requests["memory"] = res.Memory
	}
	if res.GPU != "" {
		requests["nvidia.com/gpu"] = res.GPU
	}
	if len(requests) > 0 {
		out.Requests = requests
	}

	limits := map[string]string{}
	if res.CPULimit != "" {
		limits["cpu"] = res.CPULimit
	}
	if res.MemoryLimit != "" {
		limits["memory"] = res.MemoryLimit
	}
	if res.GPULimit != "" {
		limits["nvidia.com/gpu"] = res.GPULimit
	}
	if len(limits) > 0 {
		out.Limits = limits
	}
	return out
}

func conditionExpression(cond domain.StageCondition) string {
	if cond.Task != "" {
		return fmt.Sprintf("{{tasks.%s.outputs.result}} %s %s", cond.Task, cond.Operator, cond.Value)
	}
	return fmt.Sprintf("%s %s %s", cond.Field, cond.Operator, cond.Value)
}

// revalidateStages repeats the parser's duplicate and cycle checks as a
// defensive invariant. A failure here means the parser and builder have
// drifted out of sync.
func revalidateStages(stages []domain.Stage) error {
	seen := make(map[string]struct{}, len(stages))
	for _, stage := range stages {
		name := strings.TrimSpace(stage.Name)
		if name == "" {
			return internalErrorf("stage with empty name")
		}
		if _, dup := seen[name]; dup {
			return internalErrorf("duplicate stage name %q", name)
		}
		seen[name] = struct{}{}
	}

	adj := make(map[string][]string, len(stages))
	for _, stage := range stages {
		for _, dep := range stage.Dependencies {
			if _, ok := seen[dep]; !ok {
				return internalErrorf("stage %q depends on unknown stage %q", stage.Name, dep)
			}
		}
		adj[stage.Name] = stage.Dependencies
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(stages))
	var visit func(string) bool
	visit = func(node string) bool {
		switch state[node] {
		case visiting:
			return true
		case done:
			return false
		}
		state[node] = visiting
		for _, next := range adj[node] {
			if visit(next) {
				return true
			}
		}
		state[node] = done
		return false
	}
	for _, stage := range stages {
		if state[stage.Name] == unvisited {
			if visit(stage.Name) {
				return internalErrorf("dependency cycle involving stage %q", stage.Name)
			}
		}
	}
	return nil
}
