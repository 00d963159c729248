// Package manifest provides loading and validation of modelrun job
// manifests.
//
// A run manifest is a YAML or JSON file that configures all aspects of
// a prediction run: the inference endpoint, the dataset, run behavior,
// the result store, and the run log.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	inference:
//	  url: http://localhost:8000/v1
//	  model: my-model
//	  temperature: 0.0
//	dataset:
//	  path: questions.jsonl
//	run:
//	  workers: 10
//	store:
//	  backend: file
//	  dir: results
//	output:
//	  destination: stdout
package manifest

import (
	"fmt"
	"strings"
	"time"
)

// SupportedVersion is the manifest version this build understands.
const SupportedVersion = "1.0"

// Manifest represents a validated run manifest.
//
// Required fields are Version, Inference.URL, Inference.Model, and a
// dataset (path or test mode). Everything else has defaults.
type Manifest struct {
	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Inference configures the model endpoint.
	Inference InferenceConfig `json:"inference" yaml:"inference"`

	// Dataset configures the job source.
	Dataset DatasetConfig `json:"dataset" yaml:"dataset"`

	// Run configures run behavior (optional).
	Run RunConfig `json:"run,omitempty" yaml:"run,omitempty"`

	// Store configures result persistence (optional; defaults to a
	// local "results" directory).
	Store StoreConfig `json:"store,omitempty" yaml:"store,omitempty"`

	// Output configures the JSONL run log (optional).
	Output OutputConfig `json:"output,omitempty" yaml:"output,omitempty"`
}

// InferenceConfig configures the chat-completions endpoint.
type InferenceConfig struct {
	// URL is the endpoint base address including the API version
	// path, e.g. "http://localhost:8000/v1".
	URL string `json:"url" yaml:"url"`

	// Model is the model name passed through to the endpoint.
	Model string `json:"model" yaml:"model"`

	// Temperature is the sampling temperature, passed verbatim.
	// Default: 0.
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// TimeoutSeconds bounds one request including stream consumption.
	// Default: 300.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`

	// APIKey is sent as a bearer token when non-empty.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// Timeout returns the per-request timeout as a duration.
func (c InferenceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DatasetConfig configures the job source.
type DatasetConfig struct {
	// Path is a JSONL dataset file, one question object per line.
	// Ignored in test mode.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// TestMode replaces the dataset with a built-in toy question.
	TestMode bool `json:"test_mode,omitempty" yaml:"test_mode,omitempty"`

	// Include lists job-ID glob patterns to keep. Empty means all.
	Include []string `json:"include,omitempty" yaml:"include,omitempty"`

	// Exclude lists job-ID glob patterns to drop.
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	// IncludeImages keeps questions that declare image input.
	// Default: false (image questions are filtered out).
	IncludeImages bool `json:"include_images,omitempty" yaml:"include_images,omitempty"`
}

// RunConfig configures run behavior.
type RunConfig struct {
	// Workers is the number of concurrent jobs. Default: 10.
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`

	// RateLimit is the maximum requests per second to the endpoint.
	// Zero means unlimited.
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`

	// StatusAddr enables a status HTTP server on the given address
	// (e.g., "127.0.0.1:8090") for the duration of the run. Optional.
	StatusAddr string `json:"status_addr,omitempty" yaml:"status_addr,omitempty"`
}

// Store backends.
const (
	BackendFile = "file"
	BackendS3   = "s3"
)

// StoreConfig configures result persistence.
type StoreConfig struct {
	// Backend selects the store implementation: "file" or "s3".
	// Default: "file".
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`

	// Dir is the results directory for the file backend.
	// Default: "results".
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// S3 configures the s3 backend. Required when Backend is "s3".
	S3 *S3StoreConfig `json:"s3,omitempty" yaml:"s3,omitempty"`
}

// S3StoreConfig configures the S3 store backend.
type S3StoreConfig struct {
	// Bucket is the S3 bucket name (required).
	Bucket string `json:"bucket" yaml:"bucket"`

	// Prefix is prepended to every result key. Optional.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Region is the AWS region. Optional.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Endpoint is a custom endpoint URL for S3-compatible stores.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Profile is the AWS credential profile name. Optional.
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`

	// ForcePathStyle forces path-style URLs. Required for most
	// S3-compatible stores.
	ForcePathStyle bool `json:"force_path_style,omitempty" yaml:"force_path_style,omitempty"`
}

// OutputConfig configures the JSONL run log.
type OutputConfig struct {
	// Destination is "stdout" or a file path (optionally prefixed
	// with "file:"). Default: "stdout".
	Destination string `json:"destination,omitempty" yaml:"destination,omitempty"`

	// Progress controls whether progress records are emitted.
	// Default: true.
	Progress *bool `json:"progress,omitempty" yaml:"progress,omitempty"`
}

// ProgressEnabled reports the effective progress setting.
func (c OutputConfig) ProgressEnabled() bool {
	return c.Progress == nil || *c.Progress
}

// ApplyDefaults fills optional fields with their defaults.
func (m *Manifest) ApplyDefaults() {
	if m.Inference.TimeoutSeconds <= 0 {
		m.Inference.TimeoutSeconds = 300
	}
	if m.Run.Workers <= 0 {
		m.Run.Workers = 10
	}
	if m.Store.Backend == "" {
		m.Store.Backend = BackendFile
	}
	if m.Store.Backend == BackendFile && m.Store.Dir == "" {
		m.Store.Dir = "results"
	}
	if m.Output.Destination == "" {
		m.Output.Destination = "stdout"
	}
}

// Validate checks the manifest for structural problems.
//
// Validate is called after ApplyDefaults, so defaulted fields are
// already populated.
func (m *Manifest) Validate() error {
	if m.Version != SupportedVersion {
		return fmt.Errorf("unsupported manifest version %q (want %q)", m.Version, SupportedVersion)
	}
	if strings.TrimSpace(m.Inference.URL) == "" {
		return fmt.Errorf("inference.url is required")
	}
	if strings.TrimSpace(m.Inference.Model) == "" {
		return fmt.Errorf("inference.model is required")
	}
	if !m.Dataset.TestMode && strings.TrimSpace(m.Dataset.Path) == "" {
		return fmt.Errorf("dataset.path is required unless dataset.test_mode is set")
	}

	switch m.Store.Backend {
	case BackendFile:
		if strings.TrimSpace(m.Store.Dir) == "" {
			return fmt.Errorf("store.dir is required for the file backend")
		}
	case BackendS3:
		if m.Store.S3 == nil || strings.TrimSpace(m.Store.S3.Bucket) == "" {
			return fmt.Errorf("store.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unsupported store backend %q", m.Store.Backend)
	}

	if m.Run.RateLimit < 0 {
		return fmt.Errorf("run.rate_limit must not be negative")
	}
	return nil
}
