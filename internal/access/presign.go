package access

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3AssetSigner mints presigned GET URLs against an S3-compatible bucket
// (Cloudflare R2). Only full-access gate decisions ever receive these; the
// raw storage key never leaves the server.
type S3AssetSigner struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
}

// S3Config holds the credentials and endpoint for the asset bucket.
type S3Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
}

// NewS3AssetSigner creates a signer against an R2 bucket endpoint.
func NewS3AssetSigner(cfg S3Config) (*S3AssetSigner, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("incomplete media storage configuration")
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	client := s3.New(s3.Options{
		Region: "auto",
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret, ""),
		),
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
	})

	return &S3AssetSigner{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
	}, nil
}

// GetObject reads the stored asset bytes for server-side processing, such
// as rendering degraded previews.
func (s *S3AssetSigner) GetObject(ctx context.Context, storageKey string) ([]byte, error) {
	if storageKey == "" {
		return nil, fmt.Errorf("storage key is required")
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset %s: %w", storageKey, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset %s: %w", storageKey, err)
	}
	return data, nil
}

// SignGet returns a presigned GET URL for the given storage key.
func (s *S3AssetSigner) SignGet(ctx context.Context, storageKey string, expiry time.Duration) (string, error) {
	if storageKey == "" {
		return "", fmt.Errorf("storage key is required")
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageKey),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign asset url: %w", err)
	}
	return req.URL, nil
}
