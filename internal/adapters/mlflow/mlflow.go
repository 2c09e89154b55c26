// Package mlflow is a thin client for the MLflow tracking server REST API.
package mlflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/modelplane-labs/modelplane-go/internal/platform/env"
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Experiment string
}

func ConfigFromEnv() (Config, error) {
	timeout, err := env.Duration("MODELPLANE_MLFLOW_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		BaseURL:    env.String("MODELPLANE_MLFLOW_URL", ""),
		Timeout:    timeout,
		Experiment: env.String("MODELPLANE_MLFLOW_EXPERIMENT", "modelplane"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("MODELPLANE_MLFLOW_URL is required")
	}
	if c.Timeout <= 0 {
		return errors.New("MODELPLANE_MLFLOW_TIMEOUT must be positive")
	}
	if strings.TrimSpace(c.Experiment) == "" {
		return errors.New("MODELPLANE_MLFLOW_EXPERIMENT is required")
	}
	return nil
}

type Client struct {
	baseURL    string
	experiment string
	http       *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		experiment: strings.TrimSpace(cfg.Experiment),
		http:       &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// EnsureExperiment resolves the configured experiment id, creating the
// experiment when the tracking server does not know it yet.
func (c *Client) EnsureExperiment(ctx context.Context) (string, error) {
	var got struct {
		Experiment struct {
			ExperimentID string `json:"experiment_id"`
		} `json:"experiment"`
	}
	err := c.call(ctx, http.MethodGet, "/api/2.0/mlflow/experiments/get-by-name?experiment_name="+c.experiment, nil, &got)
	if err == nil && got.Experiment.ExperimentID != "" {
		return got.Experiment.ExperimentID, nil
	}

	var created struct {
		ExperimentID string `json:"experiment_id"`
	}
	createErr := c.call(ctx, http.MethodPost, "/api/2.0/mlflow/experiments/create", map[string]any{
		"name": c.experiment,
	}, &created)
	if createErr != nil {
		return "", fmt.Errorf("create experiment: %w", createErr)
	}
	return created.ExperimentID, nil
}

// CreateRun opens a tracking run and returns its id.
func (c *Client) CreateRun(ctx context.Context, runName string, tags map[string]string) (string, error) {
	experimentID, err := c.EnsureExperiment(ctx)
	if err != nil {
		return "", err
	}

	type tagEntry struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	reqTags := make([]tagEntry, 0, len(tags)+1)
	if strings.TrimSpace(runName) != "" {
		reqTags = append(reqTags, tagEntry{Key: "mlflow.runName", Value: strings.TrimSpace(runName)})
	}
	for k, v := range tags {
		if strings.TrimSpace(k) == "" {
			continue
		}
		reqTags = append(reqTags, tagEntry{Key: k, Value: v})
	}

	var got struct {
		Run struct {
			Info struct {
				RunID string `json:"run_id"`
			} `json:"info"`
		} `json:"run"`
	}
	err = c.call(ctx, http.MethodPost, "/api/2.0/mlflow/runs/create", map[string]any{
		"experiment_id": experimentID,
		"start_time":    time.Now().UnixMilli(),
		"tags":          reqTags,
	}, &got)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	if got.Run.Info.RunID == "" {
		return "", errors.New("tracking server returned empty run id")
	}
	return got.Run.Info.RunID, nil
}

// CloseRun finishes a tracking run with the given terminal status
// (FINISHED, FAILED or KILLED).
func (c *Client) CloseRun(ctx context.Context, runID string, status string) error {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return errors.New("run id is required")
	}
	status = strings.ToUpper(strings.TrimSpace(status))
	switch status {
	case "FINISHED", "FAILED", "KILLED":
	default:
		return fmt.Errorf("unsupported run status: %q", status)
	}
	return c.call(ctx, http.MethodPost, "/api/2.0/mlflow/runs/update", map[string]any{
		"run_id":   runID,
		"status":   status,
		"end_time": time.Now().UnixMilli(),
	}, nil)
}

func (c *Client) call(ctx context.Context, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		blob, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(blob)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("mlflow api error (status=%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode mlflow response: %w", err)
	}
	return nil
}
