package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archive keeps an off-host copy of staged upload artifacts in object
// storage. Archiving is best-effort: the pipeline logs failures and moves
// on, and the local staging path stays the record's value either way.
type Archive struct {
	client *minio.Client
	bucket string
}

// NewArchive creates a MinIO-backed archive and ensures the bucket exists.
func NewArchive(cfg *MinIOConfig) (*Archive, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	a := &Archive{client: mc, bucket: cfg.Bucket}
	// ensure bucket exists (idempotent)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := mc.BucketExists(ctx, a.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return a, nil
}

// Presigned access links stay valid long enough for a reviewer to follow
// them from the notification mail.
const linkValidity = 24 * time.Hour

// ArchiveFile copies the staged file at path into the bucket under its
// staging basename and returns a presigned access URL for the object.
func (a *Archive) ArchiveFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat artifact %s: %w", path, err)
	}
	key := filepath.Base(path)
	_, err = a.client.PutObject(ctx, a.bucket, key, f, st.Size(), minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", key, err)
	}
	link, err := a.PresignedURL(ctx, key, linkValidity)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return link, nil
}

// PresignedURL returns a presigned GET URL for an archived artifact, valid
// for the given duration.
func (a *Archive) PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	reqParams := make(url.Values)
	presigned, err := a.client.PresignedGetObject(ctx, a.bucket, key, expires, reqParams)
	if err != nil {
		return "", err
	}
	return presigned.String(), nil
}
