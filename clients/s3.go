package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	xerrors "github.com/videoflix/videoflix-api/errors"
	"github.com/videoflix/videoflix-api/log"
)

// ObjectStore is the gateway to the S3-compatible object store. All
// keys are storage-relative paths within the configured bucket.
type ObjectStore interface {
	Put(ctx context.Context, localPath, key string) error
	Get(ctx context.Context, key, localPath string) error
	Presign(key string, ttl time.Duration) (string, error)
	DeleteObject(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Exists(ctx context.Context, key string) (bool, error)
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseTLS    bool
	VerifyTLS bool
}

type S3Client struct {
	bucket     string
	svc        *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
}

func NewS3Client(cfg S3Config) (*S3Client, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, xerrors.Contract(fmt.Errorf("object store credentials missing"))
	}

	httpClient := http.DefaultClient
	if !cfg.VerifyTLS {
		httpClient = &http.Client{Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}}
	}

	sess, err := session.NewSession(&aws.Config{
		Endpoint:         aws.String(cfg.Endpoint),
		Region:           aws.String(cfg.Region),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		DisableSSL:       aws.Bool(!cfg.UseTLS),
		S3ForcePathStyle: aws.Bool(true),
		HTTPClient:       httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store session: %w", err)
	}

	return &S3Client{
		bucket:     cfg.Bucket,
		svc:        s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
		downloader: s3manager.NewDownloader(sess),
	}, nil
}

func (c *S3Client) Put(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return xerrors.NotFound(fmt.Errorf("failed to open local file %q: %w", localPath, err))
	}
	defer f.Close()

	_, err = c.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ContentTypeForKey(key)),
	})
	if err != nil {
		return classifyStorageError(fmt.Errorf("failed to upload %q: %w", key, err))
	}
	return nil
}

func (c *S3Client) Get(ctx context.Context, key, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file %q: %w", localPath, err)
	}
	defer f.Close()

	_, err = c.downloader.DownloadWithContext(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classifyStorageError(fmt.Errorf("failed to download %q: %w", key, err))
	}
	return nil
}

// Presign issues a time-limited read URL. The response headers are
// pinned so playback clients always see the right content type and an
// inline disposition, whatever the object was uploaded with.
func (c *S3Client) Presign(key string, ttl time.Duration) (string, error) {
	req, _ := c.svc.GetObjectRequest(&s3.GetObjectInput{
		Bucket:                     aws.String(c.bucket),
		Key:                        aws.String(key),
		ResponseContentType:        aws.String(ContentTypeForKey(key)),
		ResponseContentDisposition: aws.String("inline"),
	})
	url, err := req.Presign(ttl)
	if err != nil {
		return "", classifyStorageError(fmt.Errorf("failed to presign %q: %w", key, err))
	}
	return url, nil
}

// DeleteObject removes one object. Deleting a missing object succeeds.
func (c *S3Client) DeleteObject(ctx context.Context, key string) error {
	_, err := c.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classifyStorageError(fmt.Errorf("failed to delete %q: %w", key, err))
	}
	return nil
}

// DeletePrefix lists and removes every object under prefix, returning
// the number of objects removed. An empty prefix listing is a no-op.
func (c *S3Client) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	deleted := 0
	var innerErr error
	err := c.svc.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		if len(page.Contents) == 0 {
			return true
		}
		objects := make([]*s3.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, &s3.ObjectIdentifier{Key: obj.Key})
		}
		_, innerErr = c.svc.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &s3.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if innerErr != nil {
			return false
		}
		deleted += len(objects)
		return true
	})
	if err == nil {
		err = innerErr
	}
	if err != nil {
		return deleted, classifyStorageError(fmt.Errorf("failed to delete prefix %q: %w", prefix, err))
	}
	log.LogNoJobID("deleted storage prefix", "prefix", prefix, "objects", deleted)
	return deleted, nil
}

func (c *S3Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok {
			switch aerr.Code() {
			case s3.ErrCodeNoSuchKey, "NotFound":
				return false, nil
			}
		}
		return false, classifyStorageError(fmt.Errorf("failed to stat %q: %w", key, err))
	}
	return true, nil
}

// classifyStorageError maps AWS SDK failures onto the error taxonomy:
// 5xx and transport errors are retried, missing objects are NotFound,
// missing credentials are a caller contract violation.
func classifyStorageError(err error) error {
	if aerr, ok := unwrapAWS(err); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey:
			return xerrors.NotFound(err)
		case "NoCredentialProviders", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return xerrors.Contract(err)
		}
		if reqErr, ok := aerr.(awserr.RequestFailure); ok {
			if reqErr.StatusCode() == 404 {
				return xerrors.NotFound(err)
			}
			if reqErr.StatusCode() < 500 {
				return xerrors.Internal(err)
			}
		}
	}
	return xerrors.Transient(err)
}

func unwrapAWS(err error) (awserr.Error, bool) {
	for err != nil {
		if aerr, ok := err.(awserr.Error); ok {
			return aerr, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
