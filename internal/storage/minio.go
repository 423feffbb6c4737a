package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"storefront/internal/models"
)

// MinioOptions configures the S3-compatible driver.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

// NewMinioClient connects and makes sure the bucket exists with a public read policy.
func NewMinioClient(ctx context.Context, opts MinioOptions) (*minio.Client, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, err
	}

	if !exists {
		err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, err
		}

		publicPolicy := `{
			"Version": "2012-10-17",
			"Statement": [
				{
					"Action": ["s3:GetObject"],
					"Effect": "Allow",
					"Principal": "*",
					"Resource": "arn:aws:s3:::` + opts.Bucket + `/*"
				}
			]
		}`

		err = client.SetBucketPolicy(ctx, opts.Bucket, publicPolicy)
		if err != nil {
			return nil, err
		}
	}

	return client, nil
}

// MinioStore keeps uploads as objects in a single bucket, keyed by file name.
type MinioStore struct {
	client   *minio.Client
	bucket   string
	resolver Resolver
	logger   log.Logger
}

func NewMinioStore(client *minio.Client, bucket, mount string, logger log.Logger) *MinioStore {
	return &MinioStore{
		client:   client,
		bucket:   bucket,
		resolver: NewResolver(mount, ""),
		logger:   logger,
	}
}

func (s *MinioStore) Driver() Driver { return DriverMinio }

func (s *MinioStore) Put(ctx context.Context, r io.Reader, opts PutOptions) (MediaReference, error) {
	id := newID()
	key := fileName(id, opts)
	size := opts.Size
	if size <= 0 {
		size = -1
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: opts.ContentType,
	})
	if err != nil {
		return MediaReference{}, fmt.Errorf("%w: %v", models.ErrStorageWrite, err)
	}
	level.Debug(s.logger).Log("msg", "media stored", "bucket", s.bucket, "key", key, "size", humanize.Bytes(uint64(info.Size)))
	return MediaReference{
		ID:          id,
		StoragePath: key,
		PublicRef:   s.resolver.ToPublic(key),
		MimeType:    opts.ContentType,
		SizeBytes:   info.Size,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (s *MinioStore) Remove(ctx context.Context, publicRef string) (bool, error) {
	key, err := s.resolver.ToStorage(publicRef)
	if err != nil {
		return false, err
	}
	// RemoveObject succeeds for missing keys, so stat first to report absence
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", models.ErrStorageDelete, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrStorageDelete, err)
	}
	return true, nil
}

func (s *MinioStore) Open(ctx context.Context, publicRef string) (*Object, error) {
	key, err := s.resolver.ToStorage(publicRef)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return &Object{Body: obj, Size: info.Size, ContentType: info.ContentType}, nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
