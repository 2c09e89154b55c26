package k8s

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

var workflowsGVR = GroupVersionResource{Group: "argoproj.io", Version: "v1alpha1", Resource: "workflows"}

func TestClientCreateAndGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/apis/argoproj.io/v1alpha1/namespaces/ml/workflows":
			if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
				t.Errorf("Authorization=%q", got)
			}
			var obj map[string]any
			if err := json.NewDecoder(r.Body).Decode(&obj); err != nil {
				t.Errorf("decode body: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(obj)
		case r.Method == http.MethodGet && r.URL.Path == "/apis/argoproj.io/v1alpha1/namespaces/ml/workflows/wf-1":
			_ = json.NewEncoder(w).Encode(map[string]any{"metadata": map[string]any{"name": "wf-1"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := NewClientWithToken(srv.URL, "test-token", "ml", srv.Client())
	if err != nil {
		t.Fatalf("NewClientWithToken() err=%v", err)
	}

	if err := client.Create(context.Background(), workflowsGVR, "ml", map[string]any{"metadata": map[string]any{"name": "wf-1"}}, nil); err != nil {
		t.Fatalf("Create() err=%v", err)
	}

	var out struct {
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
	}
	if err := client.Get(context.Background(), workflowsGVR, "ml", "wf-1", &out); err != nil {
		t.Fatalf("Get() err=%v", err)
	}
	if out.Metadata.Name != "wf-1" {
		t.Fatalf("Get() name=%q, want wf-1", out.Metadata.Name)
	}

	if err := client.Get(context.Background(), workflowsGVR, "ml", "missing", &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) err=%v, want ErrNotFound", err)
	}
}

func TestClientStatusErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusConflict, ErrAlreadyExists},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		client, err := NewClientWithToken(srv.URL, "t", "ml", srv.Client())
		if err != nil {
			t.Fatalf("NewClientWithToken() err=%v", err)
		}
		err = client.Create(context.Background(), workflowsGVR, "ml", map[string]any{}, nil)
		if !errors.Is(err, tt.want) {
			t.Fatalf("status %d: err=%v, want %v", tt.status, err, tt.want)
		}
		srv.Close()
	}
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	client, err := NewClientWithToken(srv.URL, "t", "ml", srv.Client())
	if err != nil {
		t.Fatalf("NewClientWithToken() err=%v", err)
	}
	err = client.Delete(context.Background(), workflowsGVR, "ml", "wf-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err=%v, want APIError", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("StatusCode=%d", apiErr.StatusCode)
	}
}
