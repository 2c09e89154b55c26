package domain

import "fmt"

var modelTransitions = map[ModelStatus][]ModelStatus{
	ModelStatusDraft:      {ModelStatusValidated, ModelStatusDeprecated},
	ModelStatusValidated:  {ModelStatusApproved, ModelStatusDeprecated},
	ModelStatusApproved:   {ModelStatusDeprecated},
	ModelStatusDeprecated: {},
}

// CanTransitionModel returns true when a model status transition is allowed.
func CanTransitionModel(from, to ModelStatus) bool {
	allowed, ok := modelTransitions[from]
	if !ok {
		return false
	}
	for _, candidate := range allowed {
		if candidate == to {
			return true
		}
	}
	return false
}

// ValidateModelTransition ensures a model status transition is valid.
func ValidateModelTransition(from, to ModelStatus) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("invalid model status transition")
	}
	if from == to {
		return nil
	}
	if !CanTransitionModel(from, to) {
		return fmt.Errorf("model status transition %q -> %q not allowed", from, to)
	}
	return nil
}
