// Package blob wraps the S3 object store holding the raw and processed
// pipeline data. Transient failures are retried here with exponential
// backoff; callers treat every operation as a single atomic request.
package blob

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cartmetrics/abtest-cli/internal/config"
)

// API is the slice of the S3 client the store uses. Tests substitute an
// in-memory implementation.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Client is the object-store client used by every pipeline phase.
type Client struct {
	api   API
	retry RetryConfig
}

// New builds a Client from the storage configuration. Path-style addressing
// and static credentials make it work against LocalStack and MinIO as well
// as real S3.
func New(ctx context.Context, cfg config.StorageConfig) (*Client, error) {
	configOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		configOpts = append(configOpts,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "blob: load aws config")
	}

	var clientOpts []func(*s3.Options)
	if cfg.EndpointURL != "" {
		endpoint := strings.Replace(cfg.EndpointURL, "localhost", "127.0.0.1", 1)
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
		zap.L().Debug("blob: using custom endpoint", zap.String("endpoint", endpoint))
	}

	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}

	return &Client{
		api:   s3.NewFromConfig(awsCfg, clientOpts...),
		retry: retry,
	}, nil
}

// NewWithAPI builds a Client around an existing API implementation.
func NewWithAPI(api API, retry RetryConfig) *Client {
	return &Client{api: api, retry: retry}
}

// Get downloads an object and returns its contents.
func (c *Client) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	var data []byte
	err := retryDo(ctx, c.retry, func(ctx context.Context) error {
		out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		defer out.Body.Close()
		data, err = io.ReadAll(out.Body)
		return err
	})
	if err != nil {
		return nil, eris.Wrapf(err, "blob: get s3://%s/%s", bucket, key)
	}
	return data, nil
}

// Put uploads an object.
func (c *Client) Put(ctx context.Context, bucket, key string, data []byte) error {
	err := retryDo(ctx, c.retry, func(ctx context.Context) error {
		_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		return err
	})
	if err != nil {
		return eris.Wrapf(err, "blob: put s3://%s/%s", bucket, key)
	}
	return nil
}

// List returns every object key under a prefix, following continuation
// tokens until the listing is exhausted.
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	prefix = strings.Trim(prefix, "/") + "/"

	var keys []string
	var token *string
	for {
		var out *s3.ListObjectsV2Output
		err := retryDo(ctx, c.retry, func(ctx context.Context) error {
			var err error
			out, err = c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(bucket),
				Prefix:            aws.String(prefix),
				ContinuationToken: token,
			})
			return err
		})
		if err != nil {
			return nil, eris.Wrapf(err, "blob: list s3://%s/%s", bucket, prefix)
		}

		for _, item := range out.Contents {
			keys = append(keys, aws.ToString(item.Key))
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	return keys, nil
}

// JoinKey joins prefix and parts into an S3 key without duplicate slashes.
func JoinKey(prefix string, parts ...string) string {
	prefix = strings.Trim(prefix, "/")
	clean := make([]string, 0, len(parts)+1)
	if prefix != "" {
		clean = append(clean, prefix)
	}
	for _, p := range parts {
		p = strings.ReplaceAll(strings.Trim(p, "/"), "\\", "/")
		if p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, "/")
}
