// Package argo compiles validated pipeline definitions into Argo Workflow
// manifests. The CRD shapes are modeled as plain typed structs and submitted
// through the platform Kubernetes client.
package argo

const (
	workflowAPIVersion = "argoproj.io/v1alpha1"
	workflowKind       = "Workflow"
)

type ObjectMeta struct {
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	Namespace   string            `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Labels      map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

type EnvVar struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Resources carries requests/limits maps. Maps are only populated from
// config keys actually present; an absent map must stay absent in the
// serialized manifest.
type Resources struct {
	Requests map[string]string `json:"requests,omitempty" yaml:"requests,omitempty"`
	Limits   map[string]string `json:"limits,omitempty" yaml:"limits,omitempty"`
}

type Container struct {
	Image     string     `json:"image" yaml:"image"`
	Command   []string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args      []string   `json:"args,omitempty" yaml:"args,omitempty"`
	Env       []EnvVar   `json:"env,omitempty" yaml:"env,omitempty"`
	Resources *Resources `json:"resources,omitempty" yaml:"resources,omitempty"`
}

type Template struct {
	Name      string       `json:"name" yaml:"name"`
	Container *Container   `json:"container,omitempty" yaml:"container,omitempty"`
	DAG       *DAGTemplate `json:"dag,omitempty" yaml:"dag,omitempty"`
}

type DAGTemplate struct {
	Tasks []DAGTask `json:"tasks" yaml:"tasks"`
}

type DAGTask struct {
	Name         string   `json:"name" yaml:"name"`
	Template     string   `json:"template" yaml:"template"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	When         string   `json:"when,omitempty" yaml:"when,omitempty"`
}

type RetryStrategy struct {
	Limit int `json:"limit" yaml:"limit"`
}

type Parameter struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

type Arguments struct {
	Parameters []Parameter `json:"parameters" yaml:"parameters"`
}

type WorkflowSpec struct {
	Entrypoint    string         `json:"entrypoint" yaml:"entrypoint"`
	RetryStrategy *RetryStrategy `json:"retryStrategy,omitempty" yaml:"retryStrategy,omitempty"`
	Templates     []Template     `json:"templates" yaml:"templates"`
	Arguments     Arguments      `json:"arguments" yaml:"arguments"`
}

type WorkflowStatus struct {
	Phase      string `json:"phase,omitempty" yaml:"phase,omitempty"`
	Message    string `json:"message,omitempty" yaml:"message,omitempty"`
	StartedAt  string `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
	FinishedAt string `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`
}

// Workflow is the declarative manifest handed to the orchestrator. It is
// derived one-to-one from a PipelineDefinition and discarded after
// submission; the orchestrator's state plus the local mirror row take over.
type Workflow struct {
	APIVersion string         `json:"apiVersion" yaml:"apiVersion"`
	Kind       string         `json:"kind" yaml:"kind"`
	Metadata   ObjectMeta     `json:"metadata" yaml:"metadata"`
	Spec       WorkflowSpec   `json:"spec" yaml:"spec"`
	Status     WorkflowStatus `json:"status,omitempty" yaml:"status,omitempty"`
}
