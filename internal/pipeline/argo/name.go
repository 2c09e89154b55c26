package argo

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Kubernetes resource names are capped at 63 characters.
const maxWorkflowNameLen = 63

// GenerateWorkflowName derives a deterministic DNS-safe workflow name from
// a pipeline name and id: the lowercased, hyphenated slug of the name plus
// an 8-character suffix hashed from the id.
func GenerateWorkflowName(pipelineName, pipelineID string) string {
	slug := slugify(pipelineName)
	if slug == "" {
		slug = "pipeline"
	}

	sum := sha256.Sum256([]byte(strings.TrimSpace(pipelineID)))
	suffix := hex.EncodeToString(sum[:])[:8]

	name := slug + "-" + suffix
	if len(name) > maxWorkflowNameLen {
		name = name[:maxWorkflowNameLen]
	}
	return strings.Trim(name, "-")
}

func slugify(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ', r == '\t':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
