package domain

import "testing"

func TestNewTrafficSplit(t *testing.T) {
	split, err := NewTrafficSplit(60, 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if split.Old != 60 || split.New != 40 {
		t.Fatalf("unexpected split %+v", split)
	}

	if _, err := NewTrafficSplit(60, 50); err == nil {
		t.Fatalf("expected error for sum != 100")
	}
	if _, err := NewTrafficSplit(-10, 110); err == nil {
		t.Fatalf("expected error for negative percentage")
	}
}

func TestDeploymentStatusValid(t *testing.T) {
	for _, status := range []DeploymentStatus{
		DeploymentStatusAccepted,
		DeploymentStatusDeploying,
		DeploymentStatusReady,
		DeploymentStatusDeployFailed,
		DeploymentStatusRetired,
	} {
		if !status.Valid() {
			t.Fatalf("%s: expected valid", status)
		}
	}
	if DeploymentStatus("paused").Valid() {
		t.Fatalf("expected invalid status")
	}
}
