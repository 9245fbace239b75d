package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig holds configuration for creating an S3 client.
type ClientConfig struct {
	// Region is the AWS region (required).
	Region string

	// Endpoint is an optional custom endpoint URL.
	// Used for S3-compatible services (MinIO, LocalStack, R2).
	// Example: "http://localhost:4566" for LocalStack.
	Endpoint string

	// UsePathStyle enables path-style addressing instead of virtual-hosted
	// style. Required for some S3-compatible services.
	UsePathStyle bool

	// AccessKey and SecretKey set static credentials.
	// When empty, the default credential chain is used.
	AccessKey string
	SecretKey string
}

// NewClient creates an S3 client from the given configuration.
//
// For AWS S3:
//
//	client, err := s3.NewClient(ctx, s3.ClientConfig{Region: "us-east-1"})
//
// For MinIO:
//
//	client, err := s3.NewClient(ctx, s3.ClientConfig{
//	    Region:       "us-east-1",
//	    Endpoint:     "http://localhost:9000",
//	    UsePathStyle: true,
//	    AccessKey:    "minioadmin",
//	    SecretKey:    "minioadmin",
//	})
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}

	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	s3Opts := []func(*s3.Options){}

	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}
