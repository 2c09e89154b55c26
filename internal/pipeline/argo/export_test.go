package argo

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMarshalWorkflowJSONRoundTrips(t *testing.T) {
	wf, err := NewBuilder().Build("pipe-1", "export", sampleStages(), "ml-pipelines", 2, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := MarshalWorkflowJSON(wf)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["apiVersion"] != "argoproj.io/v1alpha1" {
		t.Fatalf("unexpected apiVersion %v", decoded["apiVersion"])
	}
	if decoded["kind"] != "Workflow" {
		t.Fatalf("unexpected kind %v", decoded["kind"])
	}
}

func TestMarshalWorkflowYAMLContainsEntrypoint(t *testing.T) {
	wf, err := NewBuilder().Build("pipe-1", "export", sampleStages(), "ml-pipelines", 2, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := MarshalWorkflowYAML(wf)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), "entrypoint: main") {
		t.Fatalf("expected entrypoint in yaml:\n%s", raw)
	}
}

func TestMarshalWorkflowRejectsNil(t *testing.T) {
	if _, err := MarshalWorkflowJSON(nil); err == nil {
		t.Fatalf("expected error for nil workflow")
	}
	if _, err := MarshalWorkflowYAML(nil); err == nil {
		t.Fatalf("expected error for nil workflow")
	}
}
