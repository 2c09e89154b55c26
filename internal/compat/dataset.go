package compat

import (
	"github.com/modelplane-labs/modelplane-go/internal/domain"
)

// datasetCompatibility fixes which dataset types each job type may train
// on. Most job types accept exactly one.
var datasetCompatibility = map[domain.JobType][]domain.DatasetType{
	domain.JobTypePretrain:  {domain.DatasetTypePretrainCorpus},
	domain.JobTypeSFT:       {domain.DatasetTypeSFTPair},
	domain.JobTypeRAGTuning: {domain.DatasetTypeRAGQA},
	domain.JobTypeRLHF:      {domain.DatasetTypePreferencePair},
	domain.JobTypeEmbedding: {domain.DatasetTypePretrainCorpus, domain.DatasetTypeSFTPair},
}

// ValidateDatasetCompatibility enforces the job-type to dataset-type table.
func ValidateDatasetCompatibility(jobType domain.JobType, datasetType domain.DatasetType) error {
	allowed, ok := datasetCompatibility[jobType]
	if !ok {
		return ruleErrorf("dataset_compatibility", "job_type", "unknown job type %q", string(jobType))
	}
	if !datasetType.Valid() {
		return ruleErrorf("dataset_compatibility", "dataset.type", "unknown dataset type %q", string(datasetType))
	}
	for _, candidate := range allowed {
		if candidate == datasetType {
			return nil
		}
	}
	return ruleErrorf("dataset_compatibility", "dataset.type",
		"dataset type %q is not usable for %s jobs", string(datasetType), string(jobType))
}
