package postgres

import (
	"strings"
	"testing"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
	"github.com/modelplane-labs/modelplane-go/internal/repo"
)

func TestBuildPipelineListQueryRequiresProjectID(t *testing.T) {
	_, _, err := buildPipelineListQuery(repo.PipelineFilter{})
	if err == nil {
		t.Fatalf("expected error for missing project id")
	}
}

func TestBuildPipelineListQueryIncludesProjectID(t *testing.T) {
	query, args, err := buildPipelineListQuery(repo.PipelineFilter{ProjectID: "proj-123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) == 0 || args[0] != "proj-123" {
		t.Fatalf("expected project id as first arg, got %v", args)
	}
	if !strings.Contains(query, "project_id = $1") {
		t.Fatalf("expected project_id predicate in query, got %s", query)
	}
}

func TestBuildPipelineListQueryWithStatusAndLimit(t *testing.T) {
	query, args, err := buildPipelineListQuery(repo.PipelineFilter{
		ProjectID: "proj-123",
		Status:    domain.PipelineStatusRunning,
		Limit:     10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
	if !strings.Contains(query, "status = $2") {
		t.Fatalf("expected status predicate in query, got %s", query)
	}
	if !strings.Contains(query, "LIMIT $3") {
		t.Fatalf("expected limit in query, got %s", query)
	}
}
