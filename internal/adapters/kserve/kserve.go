// Package kserve deploys validated serving submissions as KServe
// InferenceServices.
package kserve

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
	"github.com/modelplane-labs/modelplane-go/internal/platform/k8s"
)

const (
	inferenceServiceAPIVersion = "serving.kserve.io/v1beta1"
	inferenceServiceKind       = "InferenceService"
)

var inferenceServicesGVR = k8s.GroupVersionResource{
	Group:    "serving.kserve.io",
	Version:  "v1beta1",
	Resource: "inferenceservices",
}

var ErrServiceNotFound = errors.New("inference service not found")

type Deployer struct {
	client    *k8s.Client
	namespace string
	runtime   string
}

func NewDeployer(client *k8s.Client, namespace string, runtime string) (*Deployer, error) {
	if client == nil {
		return nil, errors.New("k8s client is required")
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = strings.TrimSpace(client.Namespace())
	}
	if namespace == "" {
		return nil, errors.New("serving namespace is required")
	}
	runtime = strings.TrimSpace(runtime)
	if runtime == "" {
		runtime = "kserve-huggingfaceserver"
	}
	return &Deployer{client: client, namespace: namespace, runtime: runtime}, nil
}

// Deploy creates an InferenceService for the deployment. storageURI points
// at the model artifact in object storage.
func (d *Deployer) Deploy(ctx context.Context, dep domain.Deployment, serviceName string, storageURI string) error {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return errors.New("service name is required")
	}
	if strings.TrimSpace(storageURI) == "" {
		return errors.New("storage uri is required")
	}

	isvc := d.buildInferenceService(dep, serviceName, storageURI)
	return d.client.Create(ctx, inferenceServicesGVR, d.namespace, isvc, nil)
}

// Get fetches the live InferenceService state for readiness checks.
func (d *Deployer) Get(ctx context.Context, serviceName string) (InferenceService, error) {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return InferenceService{}, errors.New("service name is required")
	}
	var isvc InferenceService
	if err := d.client.Get(ctx, inferenceServicesGVR, d.namespace, serviceName, &isvc); err != nil {
		if errors.Is(err, k8s.ErrNotFound) {
			return InferenceService{}, ErrServiceNotFound
		}
		return InferenceService{}, err
	}
	return isvc, nil
}

// Retire deletes the InferenceService backing a retired deployment.
func (d *Deployer) Retire(ctx context.Context, serviceName string) error {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return errors.New("service name is required")
	}
	if err := d.client.Delete(ctx, inferenceServicesGVR, d.namespace, serviceName); err != nil {
		if errors.Is(err, k8s.ErrNotFound) {
			return ErrServiceNotFound
		}
		return err
	}
	return nil
}

func (d *Deployer) buildInferenceService(dep domain.Deployment, serviceName string, storageURI string) InferenceService {
	spec := dep.Spec

	model := &ModelSpec{
		ModelFormat: ModelFormat{Name: "huggingface"},
		Runtime:     d.runtime,
		StorageURI:  storageURI,
		Env: []EnvVar{
			{Name: "MAX_INPUT_TOKENS", Value: strconv.Itoa(spec.Runtime.MaxInputTokens)},
			{Name: "MAX_OUTPUT_TOKENS", Value: strconv.Itoa(spec.Runtime.MaxOutputTokens)},
			{Name: "SERVE_TARGET", Value: string(spec.ServeTarget)},
		},
	}
	if spec.UseGPU && spec.Resources.GPUs > 0 {
		gpus := strconv.Itoa(spec.Resources.GPUs)
		model.Resources = &ResourceSpec{
			Requests: map[string]string{"nvidia.com/gpu": gpus},
			Limits:   map[string]string{"nvidia.com/gpu": gpus},
		}
	}

	concurrency := int64(spec.Runtime.MaxConcurrentRequests)
	predictor := PredictorSpec{
		Model:                model,
		ContainerConcurrency: &concurrency,
	}
	if spec.Rollout != nil && spec.Rollout.Strategy == domain.RolloutCanary && spec.Rollout.TrafficSplit != nil {
		canary := int64(spec.Rollout.TrafficSplit.New)
		predictor.CanaryTrafficPercent = &canary
	}

	return InferenceService{
		APIVersion: inferenceServiceAPIVersion,
		Kind:       inferenceServiceKind,
		Metadata: ObjectMeta{
			Name:      serviceName,
			Namespace: d.namespace,
			Labels: map[string]string{
				"app.kubernetes.io/name":      "modelplane",
				"modelplane.io/deployment-id": dep.ID,
				"modelplane.io/serve-target":  strings.ToLower(string(spec.ServeTarget)),
				"modelplane.io/model-family":  strings.ToLower(spec.ModelFamily),
			},
			Annotations: map[string]string{
				"modelplane.io/model": fmt.Sprintf("%s:%s", spec.Model.Name, spec.Model.Version),
			},
		},
		Spec: InferenceServiceSpec{Predictor: predictor},
	}
}
