package domain

import (
	"fmt"
	"strings"
	"time"
)

// ServeTarget is the inference modality a deployment serves.
type ServeTarget string

const (
	ServeTargetGeneration ServeTarget = "GENERATION"
	ServeTargetRAG        ServeTarget = "RAG"
)

func (t ServeTarget) Valid() bool {
	switch t {
	case ServeTargetGeneration, ServeTargetRAG:
		return true
	default:
		return false
	}
}

// RolloutStrategy selects how traffic moves to a new deployment revision.
type RolloutStrategy string

const (
	RolloutBlueGreen RolloutStrategy = "blue-green"
	RolloutCanary    RolloutStrategy = "canary"
)

func (s RolloutStrategy) Valid() bool {
	switch s {
	case RolloutBlueGreen, RolloutCanary:
		return true
	default:
		return false
	}
}

// TrafficSplit divides traffic between the old and new revision. The split
// is validated at construction; percentages must sum to exactly 100.
type TrafficSplit struct {
	Old int
	New int
}

func NewTrafficSplit(old, new int) (TrafficSplit, error) {
	if old < 0 || new < 0 {
		return TrafficSplit{}, fmt.Errorf("traffic split percentages must be non-negative, got old=%d new=%d", old, new)
	}
	if old+new != 100 {
		return TrafficSplit{}, fmt.Errorf("traffic split must sum to 100, got old=%d new=%d", old, new)
	}
	return TrafficSplit{Old: old, New: new}, nil
}

// Rollout describes an optional rollout configuration.
type Rollout struct {
	Strategy     RolloutStrategy
	TrafficSplit *TrafficSplit
}

// RuntimeLimits bound a serving endpoint's request handling.
type RuntimeLimits struct {
	MaxConcurrentRequests int
	MaxInputTokens        int
	MaxOutputTokens       int
}

// ServeResources describes the compute requested for a serving endpoint.
type ServeResources struct {
	GPUs        int
	GPUMemoryGB int
}

// DeploymentSpec is a validated serving submission.
type DeploymentSpec struct {
	Model       ModelRef
	ModelFamily string
	JobType     JobType
	ServeTarget ServeTarget
	Resources   ServeResources
	Runtime     RuntimeLimits
	Rollout     *Rollout
	UseGPU      bool
}

// DeploymentStatus is the local lifecycle of a deployment row.
type DeploymentStatus string

const (
	DeploymentStatusAccepted     DeploymentStatus = "accepted"
	DeploymentStatusDeploying    DeploymentStatus = "deploying"
	DeploymentStatusReady        DeploymentStatus = "ready"
	DeploymentStatusDeployFailed DeploymentStatus = "deploy_failed"
	DeploymentStatusRetired      DeploymentStatus = "retired"
)

func (s DeploymentStatus) Valid() bool {
	switch s {
	case DeploymentStatusAccepted, DeploymentStatusDeploying, DeploymentStatusReady,
		DeploymentStatusDeployFailed, DeploymentStatusRetired:
		return true
	default:
		return false
	}
}

// Deployment is the persisted record for an accepted serving submission.
type Deployment struct {
	ID          string
	ProjectID   string
	TrainJobID  string
	Spec        DeploymentSpec
	Status      DeploymentStatus
	EndpointURL string
	Metadata    Metadata
	CreatedAt   time.Time
	CreatedBy   string
}

func (d Deployment) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errRequired("deployment id")
	}
	if strings.TrimSpace(d.ProjectID) == "" {
		return errRequired("project id")
	}
	if !d.Spec.ServeTarget.Valid() {
		return errInvalid("serve target", string(d.Spec.ServeTarget))
	}
	if !d.Status.Valid() {
		return errInvalid("deployment status", string(d.Status))
	}
	return nil
}
