package logostore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the part of the S3 client S3 uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config configures the S3 store. PublicURL defaults to the bucket's
// virtual-hosted endpoint.
type S3Config struct {
	Region    string
	Bucket    string
	Prefix    string // e.g. "grouphub/"
	PublicURL string // e.g. a CDN in front of the bucket
}

type S3 struct {
	client s3API
	cfg    S3Config
}

// NewS3 builds an S3 store with the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("s3 logo storage needs bucket and region")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newS3WithClient(s3.NewFromConfig(awsCfg), cfg), nil
}

func newS3WithClient(client s3API, cfg S3Config) *S3 {
	if cfg.PublicURL == "" {
		cfg.PublicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	if cfg.Prefix != "" && !strings.HasSuffix(cfg.Prefix, "/") {
		cfg.Prefix += "/"
	}
	return &S3{client: client, cfg: cfg}
}

func (s *S3) objectKey(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return s.cfg.Prefix + k, nil
}

func (s *S3) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	k, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(k),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	return err
}

func (s *S3) Delete(ctx context.Context, key string) error {
	k, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(k),
	})
	return err
}

func (s *S3) URL(key string) string {
	return joinURL(s.cfg.PublicURL, s.cfg.Prefix+key)
}

func (s *S3) Key(url string) (string, bool) {
	k, ok := trimURL(s.cfg.PublicURL, url)
	if !ok || !strings.HasPrefix(k, s.cfg.Prefix) {
		return "", false
	}
	return strings.TrimPrefix(k, s.cfg.Prefix), true
}
