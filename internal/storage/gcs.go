package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	gcs "cloud.google.com/go/storage"
)

// GCSUploader puts rendered videos in a bucket, one folder per day under prefix.
type GCSUploader struct {
	client *gcs.Client
	bucket string
	prefix string
	now    func() time.Time
}

func NewGCSUploader(ctx context.Context, bucket, prefix string) (*GCSUploader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("GCS_BUCKET not configured")
	}
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSUploader{client: c, bucket: bucket, prefix: prefix, now: time.Now}, nil
}

func (u *GCSUploader) Close() error { return u.client.Close() }

func (u *GCSUploader) objectPath(name string) string {
	return path.Join(u.prefix, u.now().UTC().Format("2006/01/02"), name)
}

// Upload returns the object's public URL. The object is made world-readable;
// buckets with uniform access need a public IAM binding instead.
func (u *GCSUploader) Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (string, error) {
	name := u.objectPath(objectName)
	obj := u.client.Bucket(u.bucket).Object(name)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	w.ContentDisposition = "inline"
	w.CacheControl = "public, max-age=86400"

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", name, err)
	}

	if err := obj.ACL().Set(ctx, gcs.AllUsers, gcs.RoleReader); err != nil {
		return "", fmt.Errorf("make %s public: %w", name, err)
	}

	return (&url.URL{Scheme: "https", Host: "storage.googleapis.com", Path: "/" + u.bucket + "/" + name}).String(), nil
}
