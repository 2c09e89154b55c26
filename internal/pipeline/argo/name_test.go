package argo

import (
	"strings"
	"testing"
)

func TestGenerateWorkflowNameSlugAndSuffix(t *testing.T) {
	name := GenerateWorkflowName("Nightly Finetune", "pipe-1")
	if !strings.HasPrefix(name, "nightly-finetune-") {
		t.Fatalf("unexpected slug in %q", name)
	}
	suffix := name[strings.LastIndex(name, "-")+1:]
	if len(suffix) != 8 {
		t.Fatalf("expected 8-character suffix, got %q", suffix)
	}
}

func TestGenerateWorkflowNameDeterministic(t *testing.T) {
	a := GenerateWorkflowName("nightly", "pipe-1")
	b := GenerateWorkflowName("nightly", "pipe-1")
	if a != b {
		t.Fatalf("expected deterministic name, got %q and %q", a, b)
	}
	if c := GenerateWorkflowName("nightly", "pipe-2"); c == a {
		t.Fatalf("expected distinct names for distinct ids, got %q", c)
	}
}

func TestGenerateWorkflowNameTruncatesTo63(t *testing.T) {
	name := GenerateWorkflowName(strings.Repeat("very long pipeline name ", 5), "pipe-1")
	if len(name) > 63 {
		t.Fatalf("name too long: %d characters", len(name))
	}
	if strings.HasSuffix(name, "-") || strings.HasPrefix(name, "-") {
		t.Fatalf("name has dangling hyphen: %q", name)
	}
}

func TestGenerateWorkflowNameFallbackSlug(t *testing.T) {
	name := GenerateWorkflowName("!!!", "pipe-1")
	if !strings.HasPrefix(name, "pipeline-") {
		t.Fatalf("expected fallback slug, got %q", name)
	}
}
