package domain

import (
	"errors"
	"fmt"
	"strings"
)

// PipelineStatus represents the local view of a pipeline's lifecycle.
type PipelineStatus string

const (
	PipelineStatusPending      PipelineStatus = "pending"
	PipelineStatusSubmitted    PipelineStatus = "submitted"
	PipelineStatusSubmitFailed PipelineStatus = "submit_failed"
	PipelineStatusRunning      PipelineStatus = "running"
	PipelineStatusSucceeded    PipelineStatus = "succeeded"
	PipelineStatusFailed       PipelineStatus = "failed"
	PipelineStatusCancelled    PipelineStatus = "cancelled"
)

func (s PipelineStatus) Valid() bool {
	switch s {
	case PipelineStatusPending, PipelineStatusSubmitted, PipelineStatusSubmitFailed,
		PipelineStatusRunning, PipelineStatusSucceeded, PipelineStatusFailed,
		PipelineStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are expected.
func (s PipelineStatus) Terminal() bool {
	switch s {
	case PipelineStatusSucceeded, PipelineStatusFailed, PipelineStatusCancelled:
		return true
	default:
		return false
	}
}

var pipelineTransitions = map[PipelineStatus][]PipelineStatus{
	PipelineStatusPending:      {PipelineStatusSubmitted, PipelineStatusSubmitFailed, PipelineStatusCancelled},
	PipelineStatusSubmitted:    {PipelineStatusRunning, PipelineStatusSucceeded, PipelineStatusFailed, PipelineStatusCancelled},
	PipelineStatusSubmitFailed: {PipelineStatusSubmitted, PipelineStatusCancelled},
	PipelineStatusRunning:      {PipelineStatusSucceeded, PipelineStatusFailed, PipelineStatusCancelled},
	PipelineStatusSucceeded:    {},
	PipelineStatusFailed:       {PipelineStatusSubmitted},
	PipelineStatusCancelled:    {},
}

// CanTransitionPipeline returns true when a status transition is allowed.
func CanTransitionPipeline(from, to PipelineStatus) bool {
	allowed, ok := pipelineTransitions[from]
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

// ValidatePipelineTransition ensures a status transition is valid.
func ValidatePipelineTransition(from, to PipelineStatus) error {
	if !from.Valid() || !to.Valid() {
		return errors.New("invalid pipeline status transition")
	}
	if from == to {
		return nil
	}
	if !CanTransitionPipeline(from, to) {
		return fmt.Errorf("pipeline status transition %q -> %q not allowed", from, to)
	}
	return nil
}

// NormalizePipelineStatus maps orchestrator phase strings onto local statuses.
func NormalizePipelineStatus(raw string) PipelineStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return PipelineStatusPending
	case "submitted":
		return PipelineStatusSubmitted
	case "submit_failed":
		return PipelineStatusSubmitFailed
	case "running":
		return PipelineStatusRunning
	case "succeeded":
		return PipelineStatusSucceeded
	case "failed", "error":
		return PipelineStatusFailed
	case "cancelled", "canceled", "terminated":
		return PipelineStatusCancelled
	default:
		return ""
	}
}
