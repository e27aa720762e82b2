// Package s3storage implements backend.ObjectStorage on S3 buckets.
package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"

	"outliers_server/apperr"
	"outliers_server/backend"
)

// API is the part of the S3 client the storage uses.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	ListBuckets(ctx context.Context, in *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

// Presigner signs time-limited object URLs.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Storage struct {
	Client    API
	Presigner Presigner
	Region    string
	// PublicBaseURL, when set, replaces the virtual-hosted S3 URL in
	// PublicURL (e.g. a CDN in front of the buckets).
	PublicBaseURL string
}

// New creates a Storage from cfg. Path-style addressing is used when an
// endpoint override is configured.
func New(cfg aws.Config, publicBaseURL string) *Storage {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.BaseEndpoint != nil
	})
	return &Storage{
		Client:        client,
		Presigner:     s3.NewPresignClient(client),
		Region:        cfg.Region,
		PublicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// EnsureBucket creates bucket unless it already exists.
func (s *Storage) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := s.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	var nf *types.NotFound
	var nsb *types.NoSuchBucket
	if !errors.As(err, &nf) && !errors.As(err, &nsb) {
		return errors.Wrapf(err, "s3storage.EnsureBucket.Head %s", bucket)
	}

	in := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if s.Region != "" && s.Region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.Region),
		}
	}
	_, err = s.Client.CreateBucket(ctx, in)
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return errors.Wrapf(err, "s3storage.EnsureBucket.Create %s", bucket)
	}
	return nil
}

// Upload stores body at bucket/path. The body is buffered so the SDK can
// compute its length and checksum.
func (s *Storage) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return errors.Wrap(err, "s3storage.Upload.Read")
	}
	if len(data) == 0 {
		return apperr.ErrEmptyUpload
	}
	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		var nsb *types.NoSuchBucket
		if errors.As(err, &nsb) {
			return errors.Wrapf(apperr.ErrNotFound, "bucket %s", bucket)
		}
		return errors.Wrap(err, "s3storage.Upload")
	}
	return nil
}

func (s *Storage) PublicURL(bucket, path string) string {
	if s.PublicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.PublicBaseURL, bucket, path)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.Region, path)
}

// SignedURL returns a presigned GET URL valid for ttl.
func (s *Storage) SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	req, err := s.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", errors.Wrap(err, "s3storage.SignedURL")
	}
	return req.URL, nil
}

// SignedUploadURL returns a presigned PUT URL valid for ttl. The upload
// must carry contentType.
func (s *Storage) SignedUploadURL(ctx context.Context, bucket, path, contentType string, ttl time.Duration) (string, error) {
	req, err := s.Presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(path),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", errors.Wrap(err, "s3storage.SignedUploadURL")
	}
	return req.URL, nil
}

func (s *Storage) ListBuckets(ctx context.Context) ([]backend.Bucket, error) {
	out, err := s.Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, errors.Wrap(err, "s3storage.ListBuckets")
	}
	buckets := make([]backend.Bucket, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		buckets = append(buckets, backend.Bucket{Name: aws.ToString(b.Name), CreatedAt: aws.ToTime(b.CreationDate)})
	}
	return buckets, nil
}
