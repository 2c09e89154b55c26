package argo

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
)

// TemplateDefault is the per-stage-type container baseline a stage config
// may override.
type TemplateDefault struct {
	Image   string   `yaml:"image"`
	Command []string `yaml:"command"`
}

// TemplateDefaults maps stage types to their container baselines.
type TemplateDefaults map[domain.StageType]TemplateDefault

func builtinTemplateDefaults() TemplateDefaults {
	return TemplateDefaults{
		domain.StageTypeDataValidation: {
			Image:   "modelplane/data-validator:latest",
			Command: []string{"python", "-m", "modelplane.validate"},
		},
		domain.StageTypeTraining: {
			Image:   "modelplane/trainer:latest",
			Command: []string{"python", "-m", "modelplane.train"},
		},
		domain.StageTypeEvaluation: {
			Image:   "modelplane/evaluator:latest",
			Command: []string{"python", "-m", "modelplane.evaluate"},
		},
		domain.StageTypeDeployment: {
			Image:   "modelplane/deployer:latest",
			Command: []string{"python", "-m", "modelplane.deploy"},
		},
	}
}

// LoadTemplateDefaults reads stage-type template overrides from a YAML file
// keyed by stage type. Types absent from the file keep the builtin default.
func LoadTemplateDefaults(path string) (TemplateDefaults, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template defaults: %w", err)
	}

	var parsed map[string]TemplateDefault
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode template defaults: %w", err)
	}

	defaults := builtinTemplateDefaults()
	for key, value := range parsed {
		stageType := domain.StageType(key)
		if !stageType.Valid() {
			return nil, fmt.Errorf("template defaults: unknown stage type %q", key)
		}
		current := defaults[stageType]
		if value.Image != "" {
			current.Image = value.Image
		}
		if len(value.Command) > 0 {
			current.Command = value.Command
		}
		defaults[stageType] = current
	}
	return defaults, nil
}
