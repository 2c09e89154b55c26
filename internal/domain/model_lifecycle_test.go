package domain

import "testing"

func TestModelTransitions(t *testing.T) {
	tests := []struct {
		from ModelStatus
		to   ModelStatus
		ok   bool
	}{
		{ModelStatusDraft, ModelStatusValidated, true},
		{ModelStatusDraft, ModelStatusApproved, false},
		{ModelStatusDraft, ModelStatusDeprecated, true},
		{ModelStatusValidated, ModelStatusApproved, true},
		{ModelStatusValidated, ModelStatusDraft, false},
		{ModelStatusApproved, ModelStatusDeprecated, true},
		{ModelStatusApproved, ModelStatusValidated, false},
		{ModelStatusDeprecated, ModelStatusDraft, false},
	}
	for _, tc := range tests {
		if got := CanTransitionModel(tc.from, tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestValidateModelTransition(t *testing.T) {
	if err := ValidateModelTransition(ModelStatusDraft, ModelStatusDraft); err != nil {
		t.Fatalf("unexpected error for self loop: %v", err)
	}
	if err := ValidateModelTransition(ModelStatusDraft, ModelStatusApproved); err == nil {
		t.Fatalf("expected error for skipped validation")
	}
	if err := ValidateModelTransition(ModelStatus("archived"), ModelStatusDraft); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}
