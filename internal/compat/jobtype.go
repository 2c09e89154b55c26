package compat

import (
	"github.com/modelplane-labs/modelplane-go/internal/domain"
)

// serveTargetCompatibility fixes which serving modality a model produced by
// each job type may back.
var serveTargetCompatibility = map[domain.JobType]domain.ServeTarget{
	domain.JobTypePretrain:  domain.ServeTargetGeneration,
	domain.JobTypeSFT:       domain.ServeTargetGeneration,
	domain.JobTypeRLHF:      domain.ServeTargetGeneration,
	domain.JobTypeEmbedding: domain.ServeTargetGeneration,
	domain.JobTypeRAGTuning: domain.ServeTargetRAG,
}

// ValidateJobTypeForServing enforces the job-type to serve-target table.
func ValidateJobTypeForServing(jobType domain.JobType, serveTarget domain.ServeTarget) error {
	expected, ok := serveTargetCompatibility[jobType]
	if !ok {
		return ruleErrorf("serve_target_compatibility", "job_type", "unknown job type %q", string(jobType))
	}
	if !serveTarget.Valid() {
		return ruleErrorf("serve_target_compatibility", "serve_target", "unknown serve target %q", string(serveTarget))
	}
	if serveTarget != expected {
		return ruleErrorf("serve_target_compatibility", "serve_target",
			"models from %s jobs must serve %s, got %s", string(jobType), string(expected), string(serveTarget))
	}
	return nil
}
