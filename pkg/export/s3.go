package export

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"
)

// S3Config contains configuration for the S3 export sink.
type S3Config struct {
	// Endpoint overrides the AWS endpoint for S3-compatible stores such as
	// MinIO. Path-style addressing is used when set.
	Endpoint  string `hcl:"endpoint,optional"`
	Region    string `hcl:"region"`
	Bucket    string `hcl:"bucket"`
	Prefix    string `hcl:"prefix,optional"`
	AccessKey string `hcl:"access_key,optional"`
	SecretKey string `hcl:"secret_key,optional"`

	InsecureSkipVerify    bool `hcl:"insecure_skip_verify,optional"`
	RequestTimeoutSeconds int  `hcl:"request_timeout_seconds,optional"`
}

// Validate validates the S3 configuration
func (c *S3Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Region, validation.Required),
		validation.Field(&c.Bucket, validation.Required),
		validation.Field(&c.RequestTimeoutSeconds, validation.Min(0)),
	)
}

func (c *S3Config) setDefaults() {
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = 30
	}
}

// s3API is the subset of the S3 client used by the sink.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink writes exports as objects under Prefix in Bucket. Directories are
// implicit in object keys.
type S3Sink struct {
	client s3API
	bucket string
	prefix string
	logger hclog.Logger
}

// NewS3Sink creates an S3 sink.
func NewS3Sink(ctx context.Context, cfg S3Config, logger hclog.Logger) (*S3Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid S3 configuration: %w", err)
	}
	cfg.setDefaults()

	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	awsCfg, err := createAWSConfig(ctx, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Debug("S3 export sink initialized", "bucket", cfg.Bucket, "prefix", cfg.Prefix)
	return newS3Sink(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newS3Sink(client s3API, bucket, prefix string, logger hclog.Logger) *S3Sink {
	return &S3Sink{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.Named("s3-sink"),
	}
}

func createAWSConfig(ctx context.Context, cfg *S3Config) (aws.Config, error) {
	httpClient := &http.Client{
		Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for local S3-compatible stores
			},
		},
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	return config.LoadDefaultConfig(ctx, opts...)
}

func (s *S3Sink) key(name string) string {
	if s.prefix == "" {
		return strings.TrimLeft(name, "/")
	}
	return path.Join(s.prefix, name)
}

// MkdirAll is a no-op; S3 has no directories.
func (s *S3Sink) MkdirAll(context.Context, string) error {
	return nil
}

// WriteFile uploads r as an object.
func (s *S3Sink) WriteFile(ctx context.Context, name string, r io.Reader) error {
	key := s.key(name)

	// PutObject needs a seekable body to sign the payload.
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		in.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	s.logger.Trace("wrote object", "bucket", s.bucket, "key", key)
	return nil
}
