// Package s3store is the S3-compatible media delegate (AWS S3, MinIO).
package s3store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/sakif/storyline/internal/apperror"
	"github.com/sakif/storyline/internal/media"
	"github.com/sakif/storyline/internal/model"
)

var _ media.Store = (*Store)(nil)

// ErrObjectNotFound is the cause of a delete for an id the bucket does not
// hold.
var ErrObjectNotFound = errors.New("object not found")

// API is the subset of *s3.Client the store uses.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // empty for AWS; e.g. http://localhost:9000 for MinIO
	AccessKey string // empty to use the default AWS credential chain
	SecretKey string
	// PublicBaseURL prefixes object keys to build the URL clients fetch.
	// Derived from Endpoint/Bucket/Region when empty.
	PublicBaseURL string
}

type Store struct {
	client  API
	bucket  string
	baseURL string
	now     func() time.Time
}

// New builds an S3 client from cfg. Static credentials are used when an
// access key is given; otherwise the SDK's default chain (env, shared
// config, instance role) applies.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3store: bucket is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3store: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO and most self-hosted gateways do not serve
			// virtual-hosted bucket names.
			o.UsePathStyle = true
		}
	})

	return NewWithClient(client, cfg.Bucket, publicBaseURL(cfg)), nil
}

// NewWithClient wraps an existing client. Tests pass a fake API.
func NewWithClient(client API, bucket, baseURL string) *Store {
	return &Store{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		now:     time.Now,
	}
}

func publicBaseURL(cfg Config) string {
	switch {
	case cfg.PublicBaseURL != "":
		return cfg.PublicBaseURL
	case cfg.Endpoint != "":
		return strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

// storageKey spreads objects by upload date: folder/yyyy/mm/dd/uuid.
func (s *Store) storageKey(folder string) string {
	d := s.now().UTC()
	return fmt.Sprintf("%s/%d/%02d/%02d/%s", folder, d.Year(), d.Month(), d.Day(), uuid.New())
}

// Upload checks the file, then PUTs it under a fresh key. The key is the
// media ID.
func (s *Store) Upload(ctx context.Context, u media.Upload) (*model.Media, error) {
	contentType, err := media.Check(u)
	if err != nil {
		return nil, err
	}

	key := s.storageKey(u.Folder)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          u.Body,
		ContentLength: aws.Int64(u.Size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, apperror.UploadFailed("storing media", err)
	}

	return &model.Media{ID: key, URL: s.baseURL + "/" + key}, nil
}

// Delete removes the object. S3's DeleteObject succeeds for missing keys, so
// HeadObject runs first to report unknown ids.
func (s *Store) Delete(ctx context.Context, mediaID string) error {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(mediaID),
	})
	if err != nil {
		if isNotFound(err) {
			return apperror.DeleteFailed(mediaID, ErrObjectNotFound)
		}
		return apperror.DeleteFailed(mediaID, err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(mediaID),
	}); err != nil {
		return apperror.DeleteFailed(mediaID, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
