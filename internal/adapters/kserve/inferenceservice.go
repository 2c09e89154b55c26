package kserve

// Typed subset of the KServe InferenceService custom resource. Only the
// fields the control plane writes or reads are modeled.

type ObjectMeta struct {
	Name        string            `json:"name"`
	Namespace   string            `json:"namespace,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

type ModelFormat struct {
	Name string `json:"name"`
}

type ModelSpec struct {
	ModelFormat ModelFormat       `json:"modelFormat"`
	Runtime     string            `json:"runtime,omitempty"`
	StorageURI  string            `json:"storageUri"`
	Resources   *ResourceSpec     `json:"resources,omitempty"`
	Env         []EnvVar          `json:"env,omitempty"`
	Args        []string          `json:"args,omitempty"`
	NodeSelect  map[string]string `json:"nodeSelector,omitempty"`
}

type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

type ResourceSpec struct {
	Requests map[string]string `json:"requests,omitempty"`
	Limits   map[string]string `json:"limits,omitempty"`
}

type PredictorSpec struct {
	Model                *ModelSpec `json:"model,omitempty"`
	MinReplicas          *int       `json:"minReplicas,omitempty"`
	MaxReplicas          int        `json:"maxReplicas,omitempty"`
	ContainerConcurrency *int64     `json:"containerConcurrency,omitempty"`
	CanaryTrafficPercent *int64     `json:"canaryTrafficPercent,omitempty"`
}

type InferenceServiceSpec struct {
	Predictor PredictorSpec `json:"predictor"`
}

type InferenceServiceStatus struct {
	URL        string      `json:"url,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
}

type Condition struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type InferenceService struct {
	APIVersion string                 `json:"apiVersion"`
	Kind       string                 `json:"kind"`
	Metadata   ObjectMeta             `json:"metadata"`
	Spec       InferenceServiceSpec   `json:"spec"`
	Status     InferenceServiceStatus `json:"status,omitempty"`
}

// Ready reports whether the service has a Ready condition with status True.
func (s InferenceService) Ready() bool {
	for _, cond := range s.Status.Conditions {
		if cond.Type == "Ready" && cond.Status == "True" {
			return true
		}
	}
	return false
}
