package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioOptions configures a MinioStore.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// MinioStore implements Store on an S3 compatible bucket. Objects are keyed
// uploads/<upload id>/<photo id><ext>.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the endpoint and creates the bucket if it does
// not exist yet.
func NewMinioStore(ctx context.Context, opts MinioOptions) (*MinioStore, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", opts.Bucket, err)
		}
	}

	return &MinioStore{client: client, bucket: opts.Bucket}, nil
}

// Bucket returns the bucket photos are stored in.
func (s *MinioStore) Bucket() string {
	return s.bucket
}

// Save uploads one photo and returns the URL path it is served at.
func (s *MinioStore) Save(ctx context.Context, uploadID, photoID, name string, r io.Reader, size int64) (string, error) {
	if !safeSegment(uploadID) || !safeSegment(photoID) {
		return "", fmt.Errorf("invalid media key %q/%q", uploadID, photoID)
	}
	file := photoFile(photoID, name)

	_, err := s.client.PutObject(ctx, s.bucket, objectKey(uploadID, file), r, size, minio.PutObjectOptions{
		ContentType:  contentType(file),
		UserMetadata: map[string]string{"filename": name},
	})
	if err != nil {
		return "", fmt.Errorf("storing photo: %w", err)
	}
	return MediaURL(uploadID, file), nil
}

// Open fetches a stored photo.
func (s *MinioStore) Open(ctx context.Context, uploadID, file string) (io.ReadCloser, int64, error) {
	if !safeSegment(uploadID) || !safeSegment(file) {
		return nil, 0, ErrNotFound
	}
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(uploadID, file), minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, mapMinioError(err)
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, 0, mapMinioError(err)
	}
	return obj, info.Size, nil
}

// DeleteUpload removes every object stored for an upload.
func (s *MinioStore) DeleteUpload(ctx context.Context, uploadID string) error {
	if !safeSegment(uploadID) {
		return fmt.Errorf("invalid upload id %q", uploadID)
	}
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    objectKey(uploadID, ""),
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("listing upload media: %w", obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("deleting %s: %w", obj.Key, err)
		}
	}
	return nil
}

func objectKey(uploadID, file string) string {
	return path.Join("uploads", uploadID) + "/" + file
}

func contentType(file string) string {
	if ct := mime.TypeByExtension(filepath.Ext(file)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func mapMinioError(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrNotFound
	}
	return fmt.Errorf("fetching photo: %w", err)
}

var _ Store = (*MinioStore)(nil)
