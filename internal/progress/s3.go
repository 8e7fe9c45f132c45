package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds connection settings for an S3-compatible store.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string

	// Prefix is prepended to the object key, e.g. "state/".
	Prefix string
}

// ObjectAPI is the subset of the S3 client the backend uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Backend stores the record as the JSON object "<prefix><namespace>.json".
type S3Backend struct {
	api    ObjectAPI
	bucket string
	key    string
}

// OpenS3 builds an S3 client from cfg. A custom endpoint (MinIO and friends)
// switches to path-style addressing.
func OpenS3(ctx context.Context, cfg S3Config, namespace string) (*S3Backend, error) {
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
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Backend(client, cfg.Bucket, cfg.Prefix, namespace), nil
}

// NewS3Backend wraps an existing client.
func NewS3Backend(api ObjectAPI, bucket, prefix, namespace string) *S3Backend {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &S3Backend{api: api, bucket: bucket, key: prefix + namespace + ".json"}
}

// Read implements Backend. A missing object is an empty record.
func (b *S3Backend) Read(ctx context.Context) (Record, error) {
	out, err := b.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return Record{}, nil
		}
		return Record{}, fmt.Errorf("get object %s: %w", b.key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Record{}, fmt.Errorf("read object %s: %w", b.key, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("parse object %s: %w", b.key, err)
	}
	return rec, nil
}

// Write implements Backend.
func (b *S3Backend) Write(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", b.key, err)
	}
	return nil
}

// Clear implements Backend.
func (b *S3Backend) Clear(ctx context.Context) error {
	_, err := b.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", b.key, err)
	}
	return nil
}
