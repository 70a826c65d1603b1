// Package objectstore wraps the S3-compatible object-storage client used by
// the Upload Orchestrator and Model Streamer: presigned PUT issuance, HEAD,
// streamed GET, and best-effort DELETE.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/ifcatlas/api/internal/apperr"
)

// Config configures the shared object-store client singleton.
type Config struct {
	Endpoint       string
	Bucket         string
	AccessKeyID    string
	SecretKey      string
	Region         string
	ForcePathStyle bool
}

// Client is a thread-safe singleton wrapping the AWS SDK v2 S3 client.
type Client struct {
	s3      *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// New constructs the shared object-store client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Client{
		s3:      client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}, nil
}

// PresignPut issues a short-lived presigned PUT URL for key, bound to
// contentType but NOT to Content-Length — the browser supplies size, and
// binding it server-side causes a signature mismatch.
func (c *Client) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	req, err := c.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", &apperr.StorageError{Op: "presign put", Err: err}
	}
	return req.URL, nil
}

// Head reports whether the object exists and, if so, its size.
func (c *Client) Head(ctx context.Context, key string) (exists bool, size int64, err error) {
	out, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, 0, nil
		}
		return false, 0, &apperr.StorageError{Op: "head", Err: err}
	}
	sz := int64(0)
	if out.ContentLength != nil {
		sz = *out.ContentLength
	}
	return true, sz, nil
}

// Get streams the object body. The caller must close the returned reader.
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, &apperr.StorageError{Op: "get", Err: err}
	}
	sz := int64(0)
	if out.ContentLength != nil {
		sz = *out.ContentLength
	}
	return out.Body, sz, nil
}

// Delete removes the object at key. Callers performing best-effort cleanup
// sweeps should log the error and continue rather than abort.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &apperr.StorageError{Op: "delete", Err: err}
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}
