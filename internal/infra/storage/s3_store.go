package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"ai-image-studio/internal/domain"
	"ai-image-studio/internal/domain/ports/adapter"
)

// Ensure S3Store implements adapter.ObjectStorage
var _ adapter.ObjectStorage = (*S3Store)(nil)

type Config struct {
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Bucket        string `yaml:"bucket"`
	PublicBaseURL string `yaml:"public_base_url"`
	UsePathStyle  bool   `yaml:"use_path_style"`
	Prefix        string `yaml:"prefix"`
}

// S3Store keeps generation images in a public bucket. Objects are
// world-readable; their URLs are handed straight to the model service and
// to clients.
type S3Store struct {
	cfg    Config
	client *s3.Client
}

func NewS3Store(cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("s3 public base url is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "generations"
	}

	options := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &S3Store{cfg: cfg, client: s3.New(options)}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: no data to store", domain.ErrInvalidArgument)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	fullKey := s.objectKey(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(fullKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", fullKey, err)
	}
	return s.publicURL(fullKey), nil
}

func (s *S3Store) Remove(ctx context.Context, key string) error {
	fullKey := s.objectKey(key)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", fullKey, err)
	}
	return nil
}

// KeyFromURL undoes publicURL: the key is whatever follows the public base.
func (s *S3Store) KeyFromURL(url string) (string, error) {
	base := strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/"
	rest, found := strings.CutPrefix(url, base)
	if !found || rest == "" {
		return "", fmt.Errorf("%w: url %q is not under %q", domain.ErrInvalidArgument, url, base)
	}
	prefix := strings.Trim(s.cfg.Prefix, "/") + "/"
	if trimmed, ok := strings.CutPrefix(rest, prefix); ok {
		return trimmed, nil
	}
	return rest, nil
}

func (s *S3Store) objectKey(key string) string {
	prefix := strings.Trim(s.cfg.Prefix, "/")
	return path.Join(prefix, key)
}

func (s *S3Store) publicURL(fullKey string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + fullKey
}
