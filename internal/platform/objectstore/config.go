package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/modelplane-labs/modelplane-go/internal/platform/env"
)

type Config struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Region         string
	UseSSL         bool
	BucketDatasets string
	BucketModels   string
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("MODELPLANE_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:       env.String("MODELPLANE_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:      env.String("MODELPLANE_MINIO_ACCESS_KEY", "modelplane"),
		SecretKey:      env.String("MODELPLANE_MINIO_SECRET_KEY", "modelplaneminio"),
		Region:         env.String("MODELPLANE_MINIO_REGION", "us-east-1"),
		UseSSL:         useSSL,
		BucketDatasets: env.String("MODELPLANE_MINIO_BUCKET_DATASETS", "datasets"),
		BucketModels:   env.String("MODELPLANE_MINIO_BUCKET_MODELS", "models"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.BucketDatasets) == "" {
		return errors.New("datasets bucket is required")
	}
	if strings.TrimSpace(c.BucketModels) == "" {
		return errors.New("models bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
