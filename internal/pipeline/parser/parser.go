// Package parser validates and normalizes user-submitted pipeline
// definitions into immutable domain.PipelineDefinition values.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
)

const (
	maxPipelineNameLen = 100
	maxStages          = 100

	defaultMaxRetries          = 3
	defaultEntrypoint          = "main"
	defaultOrchestrationSystem = "argo_workflows"
)

var pipelineNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\- ]+$`)

var conditionOperators = map[string]struct{}{
	"==":     {},
	"!=":     {},
	">":      {},
	"<":      {},
	">=":     {},
	"<=":     {},
	"in":     {},
	"not in": {},
}

// ParseError is a structural user-input error. It is never retried.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if strings.TrimSpace(e.Field) == "" {
		return "invalid pipeline: " + e.Reason
	}
	return fmt.Sprintf("invalid pipeline: %s: %s", e.Field, e.Reason)
}

func parseErrorf(field, format string, args ...any) error {
	return &ParseError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Input is the raw pipeline submission shape.
type Input struct {
	PipelineName        string
	Stages              []StageInput
	OrchestrationSystem string
	MaxRetries          *int
}

// StageInput is one raw stage record.
type StageInput struct {
	Name         string
	Type         string
	Dependencies []string
	Condition    *ConditionInput
	Config       *ConfigInput
}

// ConditionInput gates a stage. One of Field or Task must be set.
type ConditionInput struct {
	Field    string
	Task     string
	Operator string
	Value    string
}

// ConfigInput overrides compiler template defaults for a stage.
type ConfigInput struct {
	Image     string
	Command   []string
	Args      []string
	Env       map[string]string
	Resources domain.StageResources
}

// Parse validates a pipeline submission and returns the normalized
// definition. It is a pure function; all failures are *ParseError.
func Parse(in Input) (domain.PipelineDefinition, error) {
	name := strings.TrimSpace(in.PipelineName)
	if name == "" {
		return domain.PipelineDefinition{}, parseErrorf("pipeline_name", "must not be empty")
	}
	if len(name) > maxPipelineNameLen {
		return domain.PipelineDefinition{}, parseErrorf("pipeline_name", "must be at most %d characters", maxPipelineNameLen)
	}
	if !pipelineNamePattern.MatchString(name) {
		return domain.PipelineDefinition{}, parseErrorf("pipeline_name", "may only contain alphanumerics, hyphens, underscores and spaces")
	}

	if len(in.Stages) == 0 {
		return domain.PipelineDefinition{}, parseErrorf("stages", "must contain at least one stage")
	}
	if len(in.Stages) > maxStages {
		return domain.PipelineDefinition{}, parseErrorf("stages", "must contain at most %d stages", maxStages)
	}

	stages := make([]domain.Stage, 0, len(in.Stages))
	seen := make(map[string]struct{}, len(in.Stages))
	for i, raw := range in.Stages {
		stage, err := normalizeStage(i, raw)
		if err != nil {
			return domain.PipelineDefinition{}, err
		}
		if _, exists := seen[stage.Name]; exists {
			return domain.PipelineDefinition{}, parseErrorf("stages", "duplicate stage name %q", stage.Name)
		}
		seen[stage.Name] = struct{}{}
		stages = append(stages, stage)
	}

	for _, stage := range stages {
		for _, dep := range stage.Dependencies {
			if _, ok := seen[dep]; !ok {
				return domain.PipelineDefinition{}, parseErrorf(
					fmt.Sprintf("stages[%s].dependencies", stage.Name),
					"references unknown stage %q", dep,
				)
			}
		}
	}

	if offender, cyclic := findCycle(stages); cyclic {
		return domain.PipelineDefinition{}, parseErrorf("stages", "dependency cycle detected at stage %q", offender)
	}

	maxRetries := defaultMaxRetries
	if in.MaxRetries != nil {
		if *in.MaxRetries < 0 {
			return domain.PipelineDefinition{}, parseErrorf("max_retries", "must be non-negative")
		}
		maxRetries = *in.MaxRetries
	}

	orchestration := strings.TrimSpace(in.OrchestrationSystem)
	if orchestration == "" {
		orchestration = defaultOrchestrationSystem
	}

	return domain.PipelineDefinition{
		Name:                name,
		OrchestrationSystem: orchestration,
		Entrypoint:          defaultEntrypoint,
		Stages:              stages,
		MaxRetries:          maxRetries,
	}, nil
}

func normalizeStage(index int, raw StageInput) (domain.Stage, error) {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return domain.Stage{}, parseErrorf(fmt.Sprintf("stages[%d].name", index), "must not be empty")
	}

	stageType := domain.StageTypeTraining
	if typ := strings.TrimSpace(raw.Type); typ != "" {
		stageType = domain.StageType(typ)
		if !stageType.Valid() {
			return domain.Stage{}, parseErrorf(
				fmt.Sprintf("stages[%s].type", name),
				"unknown stage type %q", typ,
			)
		}
	}

	deps := make([]string, 0, len(raw.Dependencies))
	depSeen := make(map[string]struct{}, len(raw.Dependencies))
	for _, dep := range raw.Dependencies {
		dep = strings.TrimSpace(dep)
		if dep == "" {
			return domain.Stage{}, parseErrorf(
				fmt.Sprintf("stages[%s].dependencies", name),
				"must not contain empty names",
			)
		}
		if _, dup := depSeen[dep]; dup {
			continue
		}
		depSeen[dep] = struct{}{}
		deps = append(deps, dep)
	}

	var condition *domain.StageCondition
	if raw.Condition != nil {
		normalized, err := normalizeCondition(name, *raw.Condition)
		if err != nil {
			return domain.Stage{}, err
		}
		condition = normalized
	}

	config := domain.StageConfig{}
	if raw.Config != nil {
		config = domain.StageConfig{
			Image:     strings.TrimSpace(raw.Config.Image),
			Command:   raw.Config.Command,
			Args:      raw.Config.Args,
			Env:       raw.Config.Env,
			Resources: raw.Config.Resources,
		}
	}

	return domain.Stage{
		Name:         name,
		Type:         stageType,
		Dependencies: deps,
		Condition:    condition,
		Config:       config,
	}, nil
}

func normalizeCondition(stageName string, raw ConditionInput) (*domain.StageCondition, error) {
	field := strings.TrimSpace(raw.Field)
	task := strings.TrimSpace(raw.Task)
	if field == "" && task == "" {
		return nil, parseErrorf(
			fmt.Sprintf("stages[%s].condition", stageName),
			"must specify either field or task",
		)
	}

	operator := strings.TrimSpace(raw.Operator)
	if operator == "" {
		return nil, parseErrorf(
			fmt.Sprintf("stages[%s].condition", stageName),
			"operator is required",
		)
	}
	if _, ok := conditionOperators[operator]; !ok {
		return nil, parseErrorf(
			fmt.Sprintf("stages[%s].condition", stageName),
			"unsupported operator %q", operator,
		)
	}

	return &domain.StageCondition{
		Field:    field,
		Task:     task,
		Operator: operator,
		Value:    strings.TrimSpace(raw.Value),
	}, nil
}

// findCycle runs a depth-first search with an explicit on-stack set. A
// dependency edge back into the active path is a cycle; fully explored
// stages never retrigger detection.
func findCycle(stages []domain.Stage) (string, bool) {
	adj := make(map[string][]string, len(stages))
	for _, stage := range stages {
		adj[stage.Name] = stage.Dependencies
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(stages))

	var offender string
	var visit func(string) bool
	visit = func(node string) bool {
		switch state[node] {
		case visiting:
			offender = node
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
				return offender, true
			}
		}
	}
	return "", false
}
