package compat

import (
	"sort"
	"strings"

	"github.com/modelplane-labs/modelplane-go/internal/domain"
)

// supportedFamilies is the closed whitelist of model architectures the
// platform will train or serve.
var supportedFamilies = map[string]struct{}{
	"llama":   {},
	"mistral": {},
	"mixtral": {},
	"qwen":    {},
	"gemma":   {},
	"phi":     {},
	"bert":    {},
	"e5":      {},
}

// encoderOnlyFamilies can only back embedding workloads.
var encoderOnlyFamilies = map[string]struct{}{
	"bert": {},
	"e5":   {},
}

// ValidateModelFamily rejects families outside the whitelist and families
// whose usage is restricted to specific job types.
func ValidateModelFamily(family string, jobType domain.JobType) error {
	normalized := strings.ToLower(strings.TrimSpace(family))
	if normalized == "" {
		return ruleErrorf("model_family", "model_family", "is required")
	}
	if _, ok := supportedFamilies[normalized]; !ok {
		return ruleErrorf("model_family", "model_family",
			"unsupported family %q (supported: %s)", family, strings.Join(sortedFamilies(), ", "))
	}
	if !jobType.Valid() {
		return ruleErrorf("model_family", "job_type", "unknown job type %q", string(jobType))
	}
	if _, encoderOnly := encoderOnlyFamilies[normalized]; encoderOnly && jobType != domain.JobTypeEmbedding {
		return ruleErrorf("model_family", "model_family",
			"family %q is encoder-only and supports EMBEDDING jobs only, got %s", family, string(jobType))
	}
	return nil
}

func sortedFamilies() []string {
	out := make([]string, 0, len(supportedFamilies))
	for family := range supportedFamilies {
		out = append(out, family)
	}
	sort.Strings(out)
	return out
}
