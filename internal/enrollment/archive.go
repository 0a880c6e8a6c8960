package enrollment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kozaktomas/face-attendance/internal/config"
)

// Archive keeps the original enrollment photos.
type Archive interface {
	Put(ctx context.Context, studentID string, data []byte) error
}

// MinioArchive stores photos in an S3-compatible bucket under students/<id>/.
type MinioArchive struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

// NewMinioArchive connects to cfg.Endpoint and creates the bucket if missing.
func NewMinioArchive(ctx context.Context, cfg *config.ArchiveConfig) (*MinioArchive, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("archive endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create archive client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			errResp := minio.ToErrorResponse(err)
			if errResp.Code != "BucketAlreadyOwnedByYou" {
				return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
			}
		}
	}

	return &MinioArchive{client: client, bucket: cfg.Bucket, now: time.Now}, nil
}

// objectKey names the photo for studentID taken at t.
func objectKey(studentID string, t time.Time, contentType string) string {
	ext := ".bin"
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	case "image/bmp":
		ext = ".bmp"
	case "image/webp":
		ext = ".webp"
	}
	return path.Join("students", studentID, t.UTC().Format("20060102T150405Z")+ext)
}

// Put uploads data for studentID.
func (a *MinioArchive) Put(ctx context.Context, studentID string, data []byte) error {
	contentType := http.DetectContentType(data)
	key := objectKey(studentID, a.now(), contentType)

	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
