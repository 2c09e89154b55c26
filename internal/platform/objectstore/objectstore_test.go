package objectstore

import "testing"

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Endpoint:       "localhost:9000",
		AccessKey:      "modelplane",
		SecretKey:      "modelplaneminio",
		Region:         "us-east-1",
		BucketDatasets: "datasets",
		BucketModels:   "models",
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing endpoint", mutate: func(c *Config) { c.Endpoint = "" }, wantErr: true},
		{name: "endpoint with scheme", mutate: func(c *Config) { c.Endpoint = "http://localhost:9000" }, wantErr: true},
		{name: "missing access key", mutate: func(c *Config) { c.AccessKey = "" }, wantErr: true},
		{name: "missing secret key", mutate: func(c *Config) { c.SecretKey = "" }, wantErr: true},
		{name: "missing datasets bucket", mutate: func(c *Config) { c.BucketDatasets = "" }, wantErr: true},
		{name: "missing models bucket", mutate: func(c *Config) { c.BucketModels = "" }, wantErr: true},
	}

	for _, tt := range tests {
		cfg := valid
		tt.mutate(&cfg)
		if err := cfg.Validate(); (err != nil) != tt.wantErr {
			t.Fatalf("%s: expected err=%v, got %v", tt.name, tt.wantErr, err)
		}
	}
}
