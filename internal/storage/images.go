// Package storage resolves hall image references into URLs clients can load.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/iliyamo/seminar-hall-booking/internal/config"
)

// ImageResolver turns a stored image reference into a URL.
type ImageResolver interface {
	ResolveImage(ctx context.Context, ref string) (string, error)
}

// PassthroughResolver returns references unchanged.  It is used when no
// bucket is configured and images are stored as absolute URLs.
type PassthroughResolver struct{}

func (PassthroughResolver) ResolveImage(_ context.Context, ref string) (string, error) {
	return ref, nil
}

// S3Resolver presigns GET requests for image keys in a single bucket.
// References that already are absolute URLs are returned as they are.
type S3Resolver struct {
	bucket  string
	expiry  time.Duration
	presign *s3.PresignClient
}

// NewS3Resolver builds a resolver from cfg using the default AWS credential
// chain.  cfg.Bucket must be set.
func NewS3Resolver(ctx context.Context, cfg config.ImageConfig) (*S3Resolver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &S3Resolver{bucket: cfg.Bucket, expiry: expiry, presign: s3.NewPresignClient(client)}, nil
}

func (r *S3Resolver) ResolveImage(ctx context.Context, ref string) (string, error) {
	if ref == "" || isAbsoluteURL(ref) {
		return ref, nil
	}
	out, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(strings.TrimPrefix(ref, "/")),
	}, func(po *s3.PresignOptions) { po.Expires = r.expiry })
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

// NewImageResolver picks the S3 resolver when a bucket is configured and
// the passthrough resolver otherwise.
func NewImageResolver(ctx context.Context, cfg config.ImageConfig) (ImageResolver, error) {
	if cfg.Bucket == "" {
		return PassthroughResolver{}, nil
	}
	return NewS3Resolver(ctx, cfg)
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
