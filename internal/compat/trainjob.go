package compat

import (
	"github.com/modelplane-labs/modelplane-go/internal/domain"
)

// ValidateTrainJobSpec runs the full training-submission rule set. The
// base model's maximum sequence length is passed in when the catalog knows
// it; nil skips the sequence-length cap.
func ValidateTrainJobSpec(spec domain.TrainJobSpec, baseModelMaxSeqLen *int) error {
	if err := ValidateModelFamily(spec.ModelFamily, spec.JobType); err != nil {
		return err
	}
	if err := ValidateDatasetCompatibility(spec.JobType, spec.Dataset.Type); err != nil {
		return err
	}

	if spec.JobType == domain.JobTypePretrain {
		if spec.BaseModel != nil {
			return ruleErrorf("base_model", "base_model_ref", "PRETRAIN jobs must not reference a base model")
		}
		if spec.Method != domain.TrainMethodFull {
			return ruleErrorf("train_method", "method", "PRETRAIN jobs require method \"full\", got %q", string(spec.Method))
		}
	} else {
		if spec.BaseModel == nil {
			return ruleErrorf("base_model", "base_model_ref", "%s jobs require a base model", string(spec.JobType))
		}
		if !spec.Method.Valid() {
			return ruleErrorf("train_method", "method", "unknown method %q", string(spec.Method))
		}
	}

	if spec.JobType == domain.JobTypeSFT && baseModelMaxSeqLen != nil {
		if spec.Hyperparams.MaxSeqLen > *baseModelMaxSeqLen {
			return ruleErrorf("sequence_length", "hyperparams.max_seq_len",
				"%d exceeds base model's max position embeddings %d", spec.Hyperparams.MaxSeqLen, *baseModelMaxSeqLen)
		}
	}

	if err := validateHyperparams(spec.Hyperparams); err != nil {
		return err
	}
	if spec.Resources.GPUs < 0 {
		return ruleErrorf("resources", "resources.gpus", "must be non-negative, got %d", spec.Resources.GPUs)
	}
	if spec.Resources.Nodes < 1 {
		return ruleErrorf("resources", "resources.nodes", "must be at least 1, got %d", spec.Resources.Nodes)
	}
	return nil
}

func validateHyperparams(hp domain.Hyperparams) error {
	if hp.LearningRate <= 0 {
		return ruleErrorf("hyperparams", "hyperparams.lr", "must be positive, got %g", hp.LearningRate)
	}
	if hp.BatchSize <= 0 {
		return ruleErrorf("hyperparams", "hyperparams.batch_size", "must be positive, got %d", hp.BatchSize)
	}
	if hp.NumEpochs <= 0 {
		return ruleErrorf("hyperparams", "hyperparams.num_epochs", "must be positive, got %d", hp.NumEpochs)
	}
	if hp.MaxSeqLen <= 0 {
		return ruleErrorf("hyperparams", "hyperparams.max_seq_len", "must be positive, got %d", hp.MaxSeqLen)
	}
	return nil
}
