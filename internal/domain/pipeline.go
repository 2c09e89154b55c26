package domain

import (
	"strings"
	"time"
)

// StageType identifies the unit of work a pipeline stage performs.
type StageType string

const (
	StageTypeDataValidation StageType = "data_validation"
	StageTypeTraining       StageType = "training"
	StageTypeEvaluation     StageType = "evaluation"
	StageTypeDeployment     StageType = "deployment"
)

func (t StageType) Valid() bool {
	switch t {
	case StageTypeDataValidation, StageTypeTraining, StageTypeEvaluation, StageTypeDeployment:
		return true
	default:
		return false
	}
}

// StageCondition gates a stage on either a pipeline-level field or another
// stage's output. Exactly one of Field or Task is set.
type StageCondition struct {
	Field    string
	Task     string
	Operator string
	Value    string
}

// StageResources carries scheduling hints for a stage container. Empty
// fields mean the key was not supplied and must not appear in the manifest.
type StageResources struct {
	CPU         string
	Memory      string
	GPU         string
	CPULimit    string
	MemoryLimit string
	GPULimit    string
}

func (r StageResources) Empty() bool {
	return r.CPU == "" && r.Memory == "" && r.GPU == "" &&
		r.CPULimit == "" && r.MemoryLimit == "" && r.GPULimit == ""
}

// StageConfig overrides the compiler's per-type template defaults.
type StageConfig struct {
	Image     string
	Command   []string
	Args      []string
	Env       map[string]string
	Resources StageResources
}

// Stage is one node in a pipeline DAG.
type Stage struct {
	Name         string
	Type         StageType
	Dependencies []string
	Condition    *StageCondition
	Config       StageConfig
}

// PipelineDefinition is the validated, normalized result of parsing a
// pipeline submission. It is immutable once constructed.
type PipelineDefinition struct {
	Name                string
	OrchestrationSystem string
	Entrypoint          string
	Stages              []Stage
	MaxRetries          int
}

// EntryStages returns the names of stages with no dependencies.
func (p PipelineDefinition) EntryStages() []string {
	out := make([]string, 0, len(p.Stages))
	for _, stage := range p.Stages {
		if len(stage.Dependencies) == 0 {
			out = append(out, stage.Name)
		}
	}
	return out
}

// ExitStages returns the names of stages no other stage depends on.
func (p PipelineDefinition) ExitStages() []string {
	dependedOn := make(map[string]struct{})
	for _, stage := range p.Stages {
		for _, dep := range stage.Dependencies {
			dependedOn[dep] = struct{}{}
		}
	}
	out := make([]string, 0, len(p.Stages))
	for _, stage := range p.Stages {
		if _, ok := dependedOn[stage.Name]; !ok {
			out = append(out, stage.Name)
		}
	}
	return out
}

// StageNameSet returns the set of stage names declared in the definition.
func (p PipelineDefinition) StageNameSet() map[string]struct{} {
	names := make(map[string]struct{}, len(p.Stages))
	for _, stage := range p.Stages {
		if strings.TrimSpace(stage.Name) == "" {
			continue
		}
		names[stage.Name] = struct{}{}
	}
	return names
}

// Pipeline is the persisted mirror row for a submitted pipeline. The system
// of record for execution is the external orchestrator; this row tracks the
// local view and the submitted workflow name.
type Pipeline struct {
	ID                  string
	ProjectID           string
	Name                string
	OrchestrationSystem string
	Namespace           string
	WorkflowName        string
	Status              PipelineStatus
	Definition          PipelineDefinition
	Metadata            Metadata
	CreatedAt           time.Time
	CreatedBy           string
}

func (p Pipeline) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errRequired("pipeline id")
	}
	if strings.TrimSpace(p.ProjectID) == "" {
		return errRequired("project id")
	}
	if strings.TrimSpace(p.Name) == "" {
		return errRequired("pipeline name")
	}
	if !p.Status.Valid() {
		return errInvalid("pipeline status", string(p.Status))
	}
	return nil
}
