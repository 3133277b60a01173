package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	log "github.com/sirupsen/logrus"

	"model-artefact-registry/internal/core/domain"
	output "model-artefact-registry/internal/core/ports/output"
)

// S3Api is the part of the S3 client the store depends on.
type S3Api interface {
	manager.UploadAPIClient

	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

type ArtefactStore struct {
	client   S3Api
	uploader *manager.Uploader
	bucket   string
}

var _ output.ArtefactStore = (*ArtefactStore)(nil)

// NewFromConfig builds an S3 client with path-style addressing so that
// MinIO endpoints work.
func NewFromConfig(awsCfg aws.Config, bucket string) *ArtefactStore {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return NewFromClient(client, bucket)
}

func NewFromClient(client S3Api, bucket string) *ArtefactStore {
	return &ArtefactStore{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}
}

// Put streams body to bucket/key, replacing any existing object. Bodies
// larger than one part are sent as a multipart upload.
func (s *ArtefactStore) Put(ctx context.Context, key string, body io.Reader) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return "", classify(fmt.Sprintf("upload s3://%s/%s", s.bucket, key), err)
	}

	log.WithFields(log.Fields{"bucket": s.bucket, "key": key}).Debug("object uploaded")
	return key, nil
}

func (s *ArtefactStore) Get(ctx context.Context, key string) (*domain.Artefact, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("get s3://%s/%s", s.bucket, key), err)
	}

	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return &domain.Artefact{Key: key, Size: size, Body: out.Body}, nil
}

// Ping fails with ErrStorageUnavailable when the bucket is unreachable or
// does not exist.
func (s *ArtefactStore) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		op := fmt.Sprintf("head bucket %s", s.bucket)
		if bucketMissing(err) {
			return fmt.Errorf("%s: bucket does not exist: %w: %w", op, domain.ErrStorageUnavailable, err)
		}
		return classify(op, err)
	}
	return nil
}

// EnsureBucket creates the bucket when HeadBucket reports it missing.
func (s *ArtefactStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if !bucketMissing(err) {
		return classify(fmt.Sprintf("head bucket %s", s.bucket), err)
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return classify(fmt.Sprintf("create bucket %s", s.bucket), err)
	}
	log.WithField("bucket", s.bucket).Info("created artefact bucket")
	return nil
}

// bucketMissing reports whether a HeadBucket error means the bucket does
// not exist. HeadBucket responses carry no body, so a bare 404 counts.
func bucketMissing(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket" {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

var (
	notFoundCodes = map[string]bool{
		"NoSuchKey": true,
		"NotFound":  true,
	}
	accessDeniedCodes = map[string]bool{
		"AccessDenied":          true,
		"Forbidden":             true,
		"InvalidAccessKeyId":    true,
		"SignatureDoesNotMatch": true,
		"ExpiredToken":          true,
		"AllAccessDisabled":     true,
	}
)

// classify derives the error class from the S3 error code, falling back to
// the HTTP status. Anything unrecognised means the backend is unavailable.
// Not-found covers a missing object only; a missing bucket is a broken
// backend.
func classify(op string, err error) error {
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return fmt.Errorf("%s: bucket does not exist: %w: %w", op, domain.ErrStorageUnavailable, err)
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrArtefactNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.ErrorCode() == "NoSuchBucket":
			return fmt.Errorf("%s: bucket does not exist: %w: %w", op, domain.ErrStorageUnavailable, err)
		case notFoundCodes[apiErr.ErrorCode()]:
			return fmt.Errorf("%s: %w: %w", op, domain.ErrArtefactNotFound, err)
		case accessDeniedCodes[apiErr.ErrorCode()]:
			return fmt.Errorf("%s: %w: %w", op, domain.ErrAccessDenied, err)
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w: %w", op, domain.ErrArtefactNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w: %w", op, domain.ErrAccessDenied, err)
		}
	}

	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}
