package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelplane-labs/modelplane-go/internal/pipeline/argo"
	"github.com/modelplane-labs/modelplane-go/internal/platform/k8s"
)

func TestArgoOrchestratorSubmitAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/apis/argoproj.io/v1alpha1/namespaces/ml/workflows":
			var wf argo.Workflow
			if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
				t.Errorf("decode workflow: %v", err)
			}
			if wf.Metadata.Namespace != "ml" {
				t.Errorf("namespace=%q, want ml", wf.Metadata.Namespace)
			}
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(wf)
		case r.Method == http.MethodGet && r.URL.Path == "/apis/argoproj.io/v1alpha1/namespaces/ml/workflows/wf-1":
			_ = json.NewEncoder(w).Encode(argo.Workflow{
				Status: argo.WorkflowStatus{Phase: "Running"},
			})
		case r.Method == http.MethodDelete && r.URL.Path == "/apis/argoproj.io/v1alpha1/namespaces/ml/workflows/wf-1":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("{}"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := k8s.NewClientWithToken(srv.URL, "t", "ml", srv.Client())
	if err != nil {
		t.Fatalf("NewClientWithToken() err=%v", err)
	}
	orch, err := NewArgoOrchestrator(client, "ml")
	if err != nil {
		t.Fatalf("NewArgoOrchestrator() err=%v", err)
	}
	if orch.Kind() != "argo_workflows" {
		t.Fatalf("Kind()=%q", orch.Kind())
	}

	wf := &argo.Workflow{}
	wf.Metadata.Name = "wf-1"
	if err := orch.Submit(context.Background(), "", wf); err != nil {
		t.Fatalf("Submit() err=%v", err)
	}

	state, err := orch.Status(context.Background(), "", "wf-1")
	if err != nil {
		t.Fatalf("Status() err=%v", err)
	}
	if state.Phase != "Running" {
		t.Fatalf("Phase=%q, want Running", state.Phase)
	}

	if _, err := orch.Status(context.Background(), "", "missing"); !errors.Is(err, ErrWorkflowNotFound) {
		t.Fatalf("Status(missing) err=%v, want ErrWorkflowNotFound", err)
	}

	if err := orch.Stop(context.Background(), "", "wf-1"); err != nil {
		t.Fatalf("Stop() err=%v", err)
	}
}
