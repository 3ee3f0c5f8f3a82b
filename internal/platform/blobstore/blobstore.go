// Package blobstore hands out presigned S3 upload URLs so clients can put
// profile pictures directly into object storage.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingOwner       = errors.New("owner is required")
)

// AllowedContentTypes lists the image types accepted for profile pictures.
var AllowedContentTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// UploadTTL is how long a presigned PUT stays valid.
const UploadTTL = 15 * time.Minute

// Upload is a presigned PUT target plus the URL the object will be served at.
type Upload struct {
	Key         string    `json:"key"`
	UploadURL   string    `json:"upload_url"`
	ObjectURL   string    `json:"object_url"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Presigner issues upload targets for an owner's objects.
type Presigner interface {
	PresignUpload(ctx context.Context, owner, contentType string) (*Upload, error)
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Presigner presigns PutObject requests against AWS S3 or an S3-compatible
// endpoint such as MinIO.
type S3Presigner struct {
	client  *s3.PresignClient
	bucket  string
	baseURL string
	now     func() time.Time
}

func NewS3Presigner(ctx context.Context, cfg S3Config) (*S3Presigner, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	if endpoint != "" {
		baseURL = endpoint + "/" + cfg.Bucket
	}

	return &S3Presigner{
		client:  s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		baseURL: baseURL,
		now:     time.Now,
	}, nil
}

// ObjectKey builds "profiles/<owner>/<uuid>.<ext>".
func ObjectKey(owner, contentType string) (string, error) {
	if owner == "" {
		return "", ErrMissingOwner
	}
	ext, ok := AllowedContentTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidContentType, contentType)
	}
	return fmt.Sprintf("profiles/%s/%s.%s", owner, uuid.NewString(), ext), nil
}

func (p *S3Presigner) PresignUpload(ctx context.Context, owner, contentType string) (*Upload, error) {
	key, err := ObjectKey(owner, contentType)
	if err != nil {
		return nil, err
	}

	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(UploadTTL))
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}

	return &Upload{
		Key:         key,
		UploadURL:   req.URL,
		ObjectURL:   p.baseURL + "/" + key,
		ContentType: contentType,
		ExpiresAt:   p.now().Add(UploadTTL).UTC(),
	}, nil
}
