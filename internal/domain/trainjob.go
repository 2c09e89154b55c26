package domain

import (
	"strings"
	"time"
)

// JobType classifies a training submission.
type JobType string

const (
	JobTypePretrain  JobType = "PRETRAIN"
	JobTypeSFT       JobType = "SFT"
	JobTypeRAGTuning JobType = "RAG_TUNING"
	JobTypeRLHF      JobType = "RLHF"
	JobTypeEmbedding JobType = "EMBEDDING"
)

func (t JobType) Valid() bool {
	switch t {
	case JobTypePretrain, JobTypeSFT, JobTypeRAGTuning, JobTypeRLHF, JobTypeEmbedding:
		return true
	default:
		return false
	}
}

// TrainMethod is the parameter-update strategy for a training job.
type TrainMethod string

const (
	TrainMethodFull  TrainMethod = "full"
	TrainMethodLoRA  TrainMethod = "lora"
	TrainMethodQLoRA TrainMethod = "qlora"
)

func (m TrainMethod) Valid() bool {
	switch m {
	case TrainMethodFull, TrainMethodLoRA, TrainMethodQLoRA:
		return true
	default:
		return false
	}
}

// DatasetType classifies the payload format of a dataset version.
type DatasetType string

const (
	DatasetTypePretrainCorpus DatasetType = "pretrain_corpus"
	DatasetTypeSFTPair        DatasetType = "sft_pair"
	DatasetTypeRAGQA          DatasetType = "rag_qa"
	DatasetTypePreferencePair DatasetType = "preference_pair"
)

func (t DatasetType) Valid() bool {
	switch t {
	case DatasetTypePretrainCorpus, DatasetTypeSFTPair, DatasetTypeRAGQA, DatasetTypePreferencePair:
		return true
	default:
		return false
	}
}

// DatasetRef points a training job at a cataloged dataset version.
type DatasetRef struct {
	Name    string
	Version string
	Type    DatasetType
}

// ModelRef identifies a cataloged model by name and version.
type ModelRef struct {
	Name    string
	Version string
}

// Hyperparams are the training hyperparameters a submission carries.
type Hyperparams struct {
	LearningRate float64
	BatchSize    int
	NumEpochs    int
	MaxSeqLen    int
	Precision    string
}

// TrainResources describes the compute requested for a training job.
type TrainResources struct {
	GPUs  int
	Nodes int
}

// TrainJobSpec is a validated training submission. Accepted specs are
// persisted as-is and superseded, never edited, on resubmission.
type TrainJobSpec struct {
	JobType     JobType
	ModelFamily string
	Dataset     DatasetRef
	BaseModel   *ModelRef
	Hyperparams Hyperparams
	Method      TrainMethod
	Resources   TrainResources
}

// TrainJobStatus is the local lifecycle of a training job row.
type TrainJobStatus string

const (
	TrainJobStatusAccepted  TrainJobStatus = "accepted"
	TrainJobStatusRunning   TrainJobStatus = "running"
	TrainJobStatusSucceeded TrainJobStatus = "succeeded"
	TrainJobStatusFailed    TrainJobStatus = "failed"
)

func (s TrainJobStatus) Valid() bool {
	switch s {
	case TrainJobStatusAccepted, TrainJobStatusRunning, TrainJobStatusSucceeded, TrainJobStatusFailed:
		return true
	default:
		return false
	}
}

// TrainJob is the persisted record for an accepted training submission.
type TrainJob struct {
	ID          string
	ProjectID   string
	Spec        TrainJobSpec
	Status      TrainJobStatus
	TrackingRun string
	Metadata    Metadata
	CreatedAt   time.Time
	CreatedBy   string
}

func (j TrainJob) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return errRequired("train job id")
	}
	if strings.TrimSpace(j.ProjectID) == "" {
		return errRequired("project id")
	}
	if !j.Spec.JobType.Valid() {
		return errInvalid("job type", string(j.Spec.JobType))
	}
	if !j.Status.Valid() {
		return errInvalid("train job status", string(j.Status))
	}
	return nil
}
