package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/config"
	"github.com/ikkim/storefront-backend/pkg/logger"
)

const presignExpiry = 15 * time.Minute

// AllowedImageTypes are the content types accepted for product images.
var AllowedImageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
}

type PresignedUpload struct {
	UploadURL string    `json:"upload_url"`
	FileURL   string    `json:"file_url"`
	Key       string    `json:"key"` // stored as ProductImage.ImageRef
	ExpiresAt time.Time `json:"expires_at"`
}

// ImageStore issues upload URLs for product images.
type ImageStore interface {
	PresignProductImage(ctx context.Context, productID uuid.UUID, filename, contentType string) (*PresignedUpload, error)
}

type S3Storage struct {
	presign *s3.PresignClient
	bucket  string
	region  string
	baseURL string
}

func NewS3Storage(ctx context.Context, cfg config.S3Config) (*S3Storage, error) {
	var awsCfg aws.Config
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg = aws.Config{
			Region:      cfg.Region,
			Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		}
	} else {
		// Default chain: environment, shared config, instance role.
		loaded, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		awsCfg = loaded
	}

	client := s3.NewFromConfig(awsCfg)
	logger.Info("S3 storage configured", map[string]interface{}{
		"bucket": cfg.Bucket,
		"region": cfg.Region,
	})
	return &S3Storage{
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

// ProductImageKey builds the object key for a new image of productID.
func ProductImageKey(productID uuid.UUID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join("products", productID.String(), uuid.NewString()+ext)
}

func (s *S3Storage) PresignProductImage(ctx context.Context, productID uuid.UUID, filename, contentType string) (*PresignedUpload, error) {
	if err := ValidateContentType(contentType, AllowedImageTypes); err != nil {
		return nil, err
	}

	key := ProductImageKey(productID, filename)
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return &PresignedUpload{
		UploadURL: req.URL,
		FileURL:   s.FileURL(key),
		Key:       key,
		ExpiresAt: time.Now().Add(presignExpiry),
	}, nil
}

// FileURL returns the public URL of key, through the CDN when one is configured.
func (s *S3Storage) FileURL(key string) string {
	if s.baseURL != "" {
		return fmt.Sprintf("%s/%s", s.baseURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// ErrContentTypeNotAllowed is returned by ValidateContentType.
type ErrContentTypeNotAllowed struct {
	ContentType string
}

func (e *ErrContentTypeNotAllowed) Error() string {
	return fmt.Sprintf("content type %s is not allowed", e.ContentType)
}

func ValidateContentType(contentType string, allowedTypes []string) error {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType == "image/jpg" {
		contentType = "image/jpeg"
	}
	for _, allowed := range allowedTypes {
		if contentType == allowed {
			return nil
		}
	}
	return &ErrContentTypeNotAllowed{ContentType: contentType}
}
