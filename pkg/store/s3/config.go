// Package s3 implements the result store on AWS S3 and S3-compatible
// storage.
//
// Each result is one object <prefix><id>.json. S3 object PUT is atomic
// at the object level, which satisfies the store's no-partial-write
// guarantee without a rename step.
package s3

// Config configures an S3 result store.
//
// Authentication follows the AWS SDK v2 default chain unless explicit
// credentials are provided: environment variables, shared credentials
// file, shared config profile, then instance/task roles.
//
// For S3-compatible stores (MinIO, Wasabi, moto), set Endpoint and
// typically ForcePathStyle.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string

	// Prefix is prepended to every result key. A trailing slash is
	// added if missing. Optional.
	Prefix string

	// Region is the AWS region. For AWS S3 it defaults to us-east-1
	// when not resolvable from environment or profile; when Endpoint
	// is set no default is applied.
	Region string

	// Endpoint is a custom endpoint URL for S3-compatible stores.
	// Leave empty for AWS S3.
	Endpoint string

	// Profile is the AWS profile name from shared config. Optional.
	Profile string

	// AccessKeyID is an explicit access key. If set, SecretAccessKey
	// must also be set.
	AccessKeyID string

	// SecretAccessKey is an explicit secret key.
	SecretAccessKey string

	// ForcePathStyle forces path-style URLs (bucket in path, not
	// subdomain). Required for most S3-compatible stores.
	ForcePathStyle bool
}

// DefaultAWSRegion is the fallback region for AWS S3 when not specified.
const DefaultAWSRegion = "us-east-1"

// listPageSize is the page size for completion-set scans.
const listPageSize = 1000

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	}

	// If one explicit credential is set, both must be set
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return &ConfigError{
			Field:   "AccessKeyID/SecretAccessKey",
			Message: "both access key ID and secret access key must be provided together",
		}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "s3 store config: " + e.Field + ": " + e.Message
}
