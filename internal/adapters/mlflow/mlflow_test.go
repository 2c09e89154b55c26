package mlflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:    srv.URL,
		Timeout:    5 * time.Second,
		Experiment: "modelplane",
	})
	if err != nil {
		t.Fatalf("NewClient() err=%v", err)
	}
	return client
}

func TestCreateRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/2.0/mlflow/experiments/get-by-name":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"experiment": map[string]any{"experiment_id": "7"},
			})
		case "/api/2.0/mlflow/runs/create":
			var body struct {
				ExperimentID string `json:"experiment_id"`
				Tags         []struct {
					Key   string `json:"key"`
					Value string `json:"value"`
				} `json:"tags"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode create run: %v", err)
			}
			if body.ExperimentID != "7" {
				t.Errorf("experiment_id=%q, want 7", body.ExperimentID)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"run": map[string]any{"info": map[string]any{"run_id": "run-42"}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := testClient(t, srv)
	runID, err := client.CreateRun(context.Background(), "sft llama", map[string]string{"job_id": "tj-1"})
	if err != nil {
		t.Fatalf("CreateRun() err=%v", err)
	}
	if runID != "run-42" {
		t.Fatalf("runID=%q, want run-42", runID)
	}
}

func TestCreateRun_CreatesMissingExperiment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/2.0/mlflow/experiments/get-by-name":
			w.WriteHeader(http.StatusNotFound)
		case "/api/2.0/mlflow/experiments/create":
			_ = json.NewEncoder(w).Encode(map[string]any{"experiment_id": "9"})
		case "/api/2.0/mlflow/runs/create":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"run": map[string]any{"info": map[string]any{"run_id": "run-1"}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := testClient(t, srv)
	runID, err := client.CreateRun(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("CreateRun() err=%v", err)
	}
	if runID != "run-1" {
		t.Fatalf("runID=%q, want run-1", runID)
	}
}

func TestCloseRun_RejectsUnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	client := testClient(t, srv)
	if err := client.CloseRun(context.Background(), "run-1", "DONE"); err == nil {
		t.Fatalf("expected unknown status to be rejected")
	}
	if err := client.CloseRun(context.Background(), "run-1", "finished"); err != nil {
		t.Fatalf("CloseRun() err=%v", err)
	}
}
