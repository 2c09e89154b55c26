package argo

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalWorkflowJSON serializes a manifest for API submission.
func MarshalWorkflowJSON(wf *Workflow) ([]byte, error) {
	if wf == nil {
		return nil, fmt.Errorf("workflow is nil")
	}
	return json.Marshal(wf)
}

// MarshalWorkflowYAML serializes a manifest for human-facing export.
func MarshalWorkflowYAML(wf *Workflow) ([]byte, error) {
	if wf == nil {
		return nil, fmt.Errorf("workflow is nil")
	}
	return yaml.Marshal(wf)
}
