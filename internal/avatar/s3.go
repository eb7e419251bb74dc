package avatar

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// keyPrefix namespaces avatar objects inside the bucket.
const keyPrefix = "avatars/"

// S3Config holds credentials and location for an S3-compatible bucket.
type S3Config struct {
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3 stores avatars in an S3-compatible bucket, addressed path-style so
// MinIO-like endpoints work too.
type S3 struct {
	cfg      S3Config
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3 creates an S3 backend with static credentials and a custom endpoint.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	sdkCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &S3{
		cfg:      cfg,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (s *S3) Save(ctx context.Context, contentType string, r io.Reader) (string, error) {
	ext, ok := extByContentType[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}

	key := keyPrefix + uuid.New().String() + ext
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}

	return s.publicURL(key), nil
}

func (s *S3) Remove(ctx context.Context, ref string) error {
	key, ok := s.keyFromRef(ref)
	if !ok {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete avatar: %w", err)
	}
	return nil
}

func (s *S3) publicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.cfg.Endpoint, "/"), s.cfg.Bucket, key)
}

func (s *S3) keyFromRef(ref string) (string, bool) {
	prefix := fmt.Sprintf("%s/%s/", strings.TrimSuffix(s.cfg.Endpoint, "/"), s.cfg.Bucket)
	key, ok := strings.CutPrefix(ref, prefix)
	if !ok || !strings.HasPrefix(key, keyPrefix) {
		return "", false
	}
	return key, true
}
