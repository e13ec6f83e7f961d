package storage

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	defaultMaxRetries    = 3
	defaultRetryInterval = 500 * time.Millisecond
	maxRetryInterval     = 10 * time.Second
)

// R2Config encapsulates the connection info for a Cloudflare R2 bucket.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	MaxRetries      uint          // upload retries after the first failure, 0 means defaultMaxRetries
	RetryInterval   time.Duration // initial backoff interval, 0 means defaultRetryInterval
}

// minioAPI is the slice of *minio.Client the R2 client touches; tests
// substitute a stub here.
type minioAPI interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// R2Client implements ObjectStorage against an account-scoped R2 endpoint.
type R2Client struct {
	api           minioAPI
	bucket        string
	maxRetries    uint
	retryInterval time.Duration
}

// NewR2Client builds a client for {accountID}.r2.cloudflarestorage.com.
func NewR2Client(cfg R2Config) (*R2Client, error) {
	if cfg.AccountID == "" {
		return nil, fmt.Errorf("r2 account id must be provided")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("r2 credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("r2 bucket must be provided")
	}

	endpoint := fmt.Sprintf("%s.r2.cloudflarestorage.com", cfg.AccountID)
	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:       true,
		Region:       "auto",
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot build r2 client for %s: %w", endpoint, err)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	retryInterval := cfg.RetryInterval
	if retryInterval == 0 {
		retryInterval = defaultRetryInterval
	}

	return &R2Client{
		api:           client,
		bucket:        cfg.Bucket,
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
	}, nil
}

// UploadFile stores the file under key, retrying transient failures with
// exponential backoff. The content type is detected from the file extension.
func (c *R2Client) UploadFile(ctx context.Context, localPath, key string) error {
	operation := func() (minio.UploadInfo, error) {
		info, err := c.api.FPutObject(ctx, c.bucket, key, localPath, minio.PutObjectOptions{})
		if err != nil && !isTransient(err) {
			return info, backoff.Permanent(err)
		}
		return info, err
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxRetries+1),
	)
	if err != nil {
		return fmt.Errorf("upload %s to %s: %w", localPath, key, err)
	}
	return nil
}

// StatObject fetches metadata for key.
func (c *R2Client) StatObject(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := c.api.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
			return ObjectInfo{}, fmt.Errorf("stat %s: %w", key, ErrNotFound)
		}
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
	}
	return ObjectInfo{Key: key, Size: info.Size}, nil
}

// ListObjects streams the keys under prefix. Breaking out of the sequence
// cancels the underlying listing.
func (c *R2Client) ListObjects(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		listCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		opts := minio.ListObjectsOptions{Prefix: prefix, Recursive: true}
		for obj := range c.api.ListObjects(listCtx, c.bucket, opts) {
			if obj.Err != nil {
				yield(ObjectInfo{}, fmt.Errorf("list %s: %w", prefix, obj.Err))
				return
			}
			if !yield(ObjectInfo{Key: obj.Key, Size: obj.Size}, nil) {
				return
			}
		}
	}
}

func (c *R2Client) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxInterval = maxRetryInterval
	return b
}

// isTransient classifies upload failures. Anything that is not an S3 API
// response, such as a connection reset or a timeout, is worth retrying, as
// are server-side errors and throttling. Client-side rejections like
// AccessDenied never heal on their own.
func isTransient(err error) bool {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == 0 {
		return true
	}
	switch resp.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return resp.StatusCode >= 500
}

var _ ObjectStorage = (*R2Client)(nil)
