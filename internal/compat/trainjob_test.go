package compat

import (
	"errors"
	"testing"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
)

func intPtr(v int) *int { return &v }

func validSFTSpec() domain.TrainJobSpec {
	return domain.TrainJobSpec{
		JobType:     domain.JobTypeSFT,
		ModelFamily: "llama",
		Dataset: domain.DatasetRef{
			Name:    "support-chats",
			Version: "v3",
			Type:    domain.DatasetTypeSFTPair,
		},
		BaseModel: &domain.ModelRef{Name: "llama-3-8b", Version: "1"},
		Hyperparams: domain.Hyperparams{
			LearningRate: 2e-5,
			BatchSize:    16,
			NumEpochs:    3,
			MaxSeqLen:    4096,
		},
		Method:    domain.TrainMethodLoRA,
		Resources: domain.TrainResources{GPUs: 4, Nodes: 1},
	}
}

func ruleOf(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error")
	}
	var ruleErr *RuleError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected *RuleError, got %T: %v", err, err)
	}
	return ruleErr.Rule
}

func TestValidateTrainJobSpecAccepts(t *testing.T) {
	if err := ValidateTrainJobSpec(validSFTSpec(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateTrainJobSpecPretrainInvariants(t *testing.T) {
	spec := validSFTSpec()
	spec.JobType = domain.JobTypePretrain
	spec.Dataset.Type = domain.DatasetTypePretrainCorpus
	spec.Method = domain.TrainMethodFull
	spec.BaseModel = nil
	if err := ValidateTrainJobSpec(spec, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	withBase := spec
	withBase.BaseModel = &domain.ModelRef{Name: "llama-3-8b", Version: "1"}
	if rule := ruleOf(t, ValidateTrainJobSpec(withBase, nil)); rule != "base_model" {
		t.Fatalf("unexpected rule %q", rule)
	}

	withLoRA := spec
	withLoRA.Method = domain.TrainMethodLoRA
	if rule := ruleOf(t, ValidateTrainJobSpec(withLoRA, nil)); rule != "train_method" {
		t.Fatalf("unexpected rule %q", rule)
	}
}

func TestValidateTrainJobSpecFinetuneRequiresBaseModel(t *testing.T) {
	spec := validSFTSpec()
	spec.BaseModel = nil
	if rule := ruleOf(t, ValidateTrainJobSpec(spec, nil)); rule != "base_model" {
		t.Fatalf("unexpected rule %q", rule)
	}
}

func TestValidateTrainJobSpecSequenceLengthCap(t *testing.T) {
	spec := validSFTSpec()

	if err := ValidateTrainJobSpec(spec, intPtr(4096)); err != nil {
		t.Fatalf("unexpected error at the cap: %v", err)
	}
	if rule := ruleOf(t, ValidateTrainJobSpec(spec, intPtr(2048))); rule != "sequence_length" {
		t.Fatalf("unexpected rule %q", rule)
	}

	// The cap applies to SFT only; other finetune types ignore it.
	rag := validSFTSpec()
	rag.JobType = domain.JobTypeRAGTuning
	rag.Dataset.Type = domain.DatasetTypeRAGQA
	if err := ValidateTrainJobSpec(rag, intPtr(2048)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateTrainJobSpecHyperparams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.TrainJobSpec)
	}{
		{"zero lr", func(s *domain.TrainJobSpec) { s.Hyperparams.LearningRate = 0 }},
		{"negative lr", func(s *domain.TrainJobSpec) { s.Hyperparams.LearningRate = -1e-5 }},
		{"zero batch size", func(s *domain.TrainJobSpec) { s.Hyperparams.BatchSize = 0 }},
		{"zero epochs", func(s *domain.TrainJobSpec) { s.Hyperparams.NumEpochs = 0 }},
		{"zero max seq len", func(s *domain.TrainJobSpec) { s.Hyperparams.MaxSeqLen = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec := validSFTSpec()
			tc.mutate(&spec)
			if rule := ruleOf(t, ValidateTrainJobSpec(spec, nil)); rule != "hyperparams" {
				t.Fatalf("unexpected rule %q", rule)
			}
		})
	}
}

func TestValidateTrainJobSpecResources(t *testing.T) {
	spec := validSFTSpec()
	spec.Resources.GPUs = -1
	if rule := ruleOf(t, ValidateTrainJobSpec(spec, nil)); rule != "resources" {
		t.Fatalf("unexpected rule %q", rule)
	}

	spec = validSFTSpec()
	spec.Resources.Nodes = 0
	if rule := ruleOf(t, ValidateTrainJobSpec(spec, nil)); rule != "resources" {
		t.Fatalf("unexpected rule %q", rule)
	}

	// CPU-only training is allowed.
	spec = validSFTSpec()
	spec.Resources.GPUs = 0
	if err := ValidateTrainJobSpec(spec, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateTrainJobSpecUnknownMethod(t *testing.T) {
	spec := validSFTSpec()
	spec.Method = domain.TrainMethod("adapters")
	if rule := ruleOf(t, ValidateTrainJobSpec(spec, nil)); rule != "train_method" {
		t.Fatalf("unexpected rule %q", rule)
	}
}
