package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/evalforge/modelrun/pkg/store"
)

// Store implements store.Store on an S3 bucket.
type Store struct {
	client   *s3.Client
	bucket   string
	prefix   string
	existing map[string]struct{}
}

var _ store.Store = (*Store)(nil)

// Open creates the S3 client and scans the bucket prefix once for
// completed IDs.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &store.StoreError{Op: "Open", Backend: "s3", Err: err}
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	s := &Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: normalizePrefix(cfg.Prefix),
	}

	if err := s.scan(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// loadAWSConfig builds the AWS configuration with appropriate credentials.
func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	// Only apply explicit region if set; let the SDK resolve from
	// env/profile first.
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		staticCreds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for long-term credentials)
		)
		opts = append(opts, awsconfig.WithCredentialsProvider(staticCreds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	awsCfg.Region = resolveRegion(cfg.Endpoint, awsCfg.Region)
	return awsCfg, nil
}

// scan lists all result objects under the prefix and records their IDs.
func (s *Store) scan(ctx context.Context) error {
	existing := make(map[string]struct{})
	var continuationToken *string

	for {
		input := &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			MaxKeys:           aws.Int32(listPageSize),
			ContinuationToken: continuationToken,
		}
		if s.prefix != "" {
			input.Prefix = aws.String(s.prefix)
		}

		output, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return s.wrapError("scan", "", err)
		}

		for _, obj := range output.Contents {
			key := aws.ToString(obj.Key)
			id, ok := s.idFromKey(key)
			if !ok {
				continue
			}
			existing[id] = struct{}{}
		}

		if !aws.ToBool(output.IsTruncated) || output.NextContinuationToken == nil {
			break
		}
		continuationToken = output.NextContinuationToken
	}

	s.existing = existing
	return nil
}

func (s *Store) Exists(id string) bool {
	_, ok := s.existing[id]
	return ok
}

func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.existing))
	for id := range s.existing {
		ids = append(ids, id)
	}
	return ids
}

// Put uploads the result as a single object. Object PUT is atomic:
// readers see either the prior version or the complete new one.
func (s *Store) Put(ctx context.Context, result *store.Result) error {
	if result == nil || result.ID == "" {
		return &store.StoreError{Op: "Put", Backend: "s3", Err: fmt.Errorf("result id is required")}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return &store.StoreError{Op: "Put", Backend: "s3", ID: result.ID, Err: err}
	}
	data = append(data, '\n')

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(result.ID)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return s.wrapError("Put", result.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*store.Result, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return nil, s.wrapError("Get", id, err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, s.wrapError("Get", id, err)
	}

	var result store.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &store.StoreError{Op: "Get", Backend: "s3", ID: id, Err: err}
	}
	return &result, nil
}

// Close releases any resources held by the store. The S3 client does
// not require explicit cleanup.
func (s *Store) Close() error { return nil }

func (s *Store) key(id string) string {
	return s.prefix + id + ".json"
}

// idFromKey recovers a job ID from an object key, rejecting keys
// outside the prefix or without the .json suffix.
func (s *Store) idFromKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, s.prefix)
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, ".json")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// wrapError converts S3 errors to store errors with sentinel causes.
func (s *Store) wrapError(op, id string, err error) error {
	wrapped := &store.StoreError{Op: op, Backend: "s3", ID: id, Err: err}

	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		wrapped.Err = store.ErrNotFound
		return wrapped
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			wrapped.Err = store.ErrNotFound
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			wrapped.Err = store.ErrAccessDenied
		case "ServiceUnavailable", "InternalError", "SlowDown":
			wrapped.Err = store.ErrUnavailable
		}
	}

	return wrapped
}

// normalizePrefix ensures a non-empty prefix ends with a slash.
func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// resolveRegion applies the region fallback after SDK config loading.
// S3-compatible stores (endpoint set) get no default.
func resolveRegion(endpoint, sdkRegion string) string {
	if sdkRegion != "" {
		return sdkRegion
	}
	if endpoint == "" {
		return DefaultAWSRegion
	}
	return ""
}
