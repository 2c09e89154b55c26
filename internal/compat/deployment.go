package compat

import (
	"strings"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
)

// ValidateDeploymentSpec runs the full serving-submission rule set.
// trainingFamily is the model family of the originating training job when
// known (empty skips the match); modelMaxSeqLen caps max_input_tokens when
// the catalog knows the model's context window.
func ValidateDeploymentSpec(spec domain.DeploymentSpec, trainingFamily string, modelMaxSeqLen *int) error {
	if err := ValidateJobTypeForServing(spec.JobType, spec.ServeTarget); err != nil {
		return err
	}

	if trimmed := strings.TrimSpace(trainingFamily); trimmed != "" {
		if !strings.EqualFold(trimmed, strings.TrimSpace(spec.ModelFamily)) {
			return ruleErrorf("model_family_match", "model_family",
				"%q does not match the originating training job's family %q", spec.ModelFamily, trainingFamily)
		}
	}

	if spec.Resources.GPUs < 0 {
		return ruleErrorf("resources", "resources.gpus", "must be non-negative, got %d", spec.Resources.GPUs)
	}
	if spec.Resources.GPUMemoryGB < 0 {
		return ruleErrorf("resources", "resources.gpu_memory_gb", "must be non-negative, got %d", spec.Resources.GPUMemoryGB)
	}

	if modelMaxSeqLen != nil && spec.Runtime.MaxInputTokens > *modelMaxSeqLen {
		return ruleErrorf("sequence_length", "runtime.max_input_tokens",
			"%d exceeds the model's max position embeddings %d", spec.Runtime.MaxInputTokens, *modelMaxSeqLen)
	}

	if spec.Runtime.MaxConcurrentRequests <= 0 {
		return ruleErrorf("runtime", "runtime.max_concurrent_requests", "must be positive, got %d", spec.Runtime.MaxConcurrentRequests)
	}
	if spec.Runtime.MaxInputTokens <= 0 {
		return ruleErrorf("runtime", "runtime.max_input_tokens", "must be positive, got %d", spec.Runtime.MaxInputTokens)
	}
	if spec.Runtime.MaxOutputTokens <= 0 {
		return ruleErrorf("runtime", "runtime.max_output_tokens", "must be positive, got %d", spec.Runtime.MaxOutputTokens)
	}

	if spec.Rollout != nil {
		if !spec.Rollout.Strategy.Valid() {
			return ruleErrorf("rollout", "rollout.strategy", "unknown strategy %q", string(spec.Rollout.Strategy))
		}
		if spec.Rollout.Strategy == domain.RolloutCanary && spec.Rollout.TrafficSplit == nil {
			return ruleErrorf("rollout", "rollout.traffic_split", "canary rollouts require a traffic split")
		}
		if split := spec.Rollout.TrafficSplit; split != nil {
			if split.Old < 0 || split.New < 0 {
				return ruleErrorf("rollout", "rollout.traffic_split", "percentages must be non-negative")
			}
			if split.Old+split.New != 100 {
				return ruleErrorf("rollout", "rollout.traffic_split",
					"percentages must sum to 100, got %d", split.Old+split.New)
			}
		}
	}
	return nil
}
