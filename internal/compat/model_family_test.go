package compat

import (
	"strings"
	"testing"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
)

func TestValidateModelFamilyWhitelist(t *testing.T) {
	for _, family := range []string{"llama", "mistral", "mixtral", "qwen", "gemma", "phi"} {
		if err := ValidateModelFamily(family, domain.JobTypeSFT); err != nil {
			t.Fatalf("%s: unexpected error: %v", family, err)
		}
	}

	err := ValidateModelFamily("gpt2", domain.JobTypeSFT)
	if rule := ruleOf(t, err); rule != "model_family" {
		t.Fatalf("unexpected rule %q", rule)
	}
	// The message enumerates the whitelist for the caller.
	if !strings.Contains(err.Error(), "llama") {
		t.Fatalf("expected supported families in message, got %q", err.Error())
	}
}

func TestValidateModelFamilyNormalizes(t *testing.T) {
	if err := ValidateModelFamily("  LLaMA  ", domain.JobTypeSFT); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule := ruleOf(t, ValidateModelFamily("   ", domain.JobTypeSFT)); rule != "model_family" {
		t.Fatalf("unexpected rule %q", rule)
	}
}

func TestValidateModelFamilyEncoderOnly(t *testing.T) {
	for _, family := range []string{"bert", "e5"} {
		if err := ValidateModelFamily(family, domain.JobTypeEmbedding); err != nil {
			t.Fatalf("%s: unexpected error: %v", family, err)
		}
		if rule := ruleOf(t, ValidateModelFamily(family, domain.JobTypeSFT)); rule != "model_family" {
			t.Fatalf("%s: unexpected rule %q", family, rule)
		}
	}
}

func TestValidateJobTypeForServing(t *testing.T) {
	if err := ValidateJobTypeForServing(domain.JobTypeSFT, domain.ServeTargetGeneration); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateJobTypeForServing(domain.JobTypeRAGTuning, domain.ServeTargetRAG); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rule := ruleOf(t, ValidateJobTypeForServing(domain.JobTypeSFT, domain.ServeTargetRAG)); rule != "serve_target_compatibility" {
		t.Fatalf("unexpected rule %q", rule)
	}
	if rule := ruleOf(t, ValidateJobTypeForServing(domain.JobType("DISTILL"), domain.ServeTargetGeneration)); rule != "serve_target_compatibility" {
		t.Fatalf("unexpected rule %q", rule)
	}
	if rule := ruleOf(t, ValidateJobTypeForServing(domain.JobTypeSFT, domain.ServeTarget("BATCH"))); rule != "serve_target_compatibility" {
		t.Fatalf("unexpected rule %q", rule)
	}
}
