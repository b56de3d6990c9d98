package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/uniedit/album/internal/infra/config"
	"github.com/uniedit/album/internal/module/federation"
	"github.com/uniedit/album/internal/utils/metrics"
	"go.uber.org/zap"
)

// ErrInvalidTTL is returned by Presign for a non-positive lifetime.
var ErrInvalidTTL = errors.New("presign ttl must be positive")

// S3API is the subset of the S3 API used by the gateway.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner issues presigned read requests.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Options configures the object store connection.
type Options struct {
	Bucket       string
	Region       string
	Endpoint     string // optional, for S3-compatible stores
	UsePathStyle bool
}

// OptionsFromConfig extracts storage options from the validated config.
func OptionsFromConfig(cfg *config.StorageConfig) Options {
	return Options{
		Bucket:       cfg.Bucket,
		Region:       cfg.Region,
		Endpoint:     cfg.Endpoint,
		UsePathStyle: cfg.UsePathStyle,
	}
}

// ClientFactory builds per-credential S3 clients over one shared base config.
type ClientFactory struct {
	opts    Options
	base    aws.Config
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewClientFactory loads the base AWS config once. Credentials are supplied
// per client, never from the environment.
func NewClientFactory(ctx context.Context, opts Options, m *metrics.Metrics, logger *zap.Logger) (*ClientFactory, error) {
	if opts.Bucket == "" || opts.Region == "" {
		return nil, errors.New("incomplete storage configuration")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &ClientFactory{
		opts:    opts,
		base:    base,
		metrics: m,
		logger:  logger.Named("storage"),
	}, nil
}

// Client returns a client bound to creds. It must not outlive creds.Expiration.
func (f *ClientFactory) Client(creds *federation.Credentials) (*Client, error) {
	if creds == nil {
		return nil, federation.ErrNoAuthenticatedSession
	}

	api := s3.NewFromConfig(f.base, func(o *s3.Options) {
		o.Credentials = credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID,
			creds.SecretAccessKey,
			creds.SessionToken,
		)
		if f.opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(f.opts.Endpoint)
		}
		o.UsePathStyle = f.opts.UsePathStyle
	})

	return &Client{
		api:       api,
		presigner: s3.NewPresignClient(api),
		bucket:    f.opts.Bucket,
		creds:     creds,
		metrics:   f.metrics,
		logger:    f.logger,
		now:       time.Now,
	}, nil
}

// Client performs storage operations with one set of federated credentials.
type Client struct {
	api       S3API
	presigner Presigner
	bucket    string
	creds     *federation.Credentials
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// PresignedURL is a time-limited read URL.
type PresignedURL struct {
	URL       string
	Method    string
	ExpiresAt time.Time
}

// Page is one listing result. ContinuationToken is nil on the last page and
// is otherwise the provider's token, unmodified.
type Page struct {
	Keys              []*string
	ContinuationToken *string
}

// Put uploads body under key.
func (c *Client) Put(ctx context.Context, key string, body []byte, contentType string) error {
	return c.do(ctx, "put", key, func() error {
		input := &s3.PutObjectInput{
			Bucket:        aws.String(c.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(body),
			ContentLength: aws.Int64(int64(len(body))),
		}
		if contentType != "" {
			input.ContentType = aws.String(contentType)
		}
		_, err := c.api.PutObject(ctx, input)
		return err
	})
}

// Get downloads the object stored under key.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := c.do(ctx, "get", key, func() error {
		out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		defer out.Body.Close()

		data, err = io.ReadAll(out.Body)
		return err
	})
	return data, err
}

// List returns up to limit keys starting at token.
func (c *Client) List(ctx context.Context, limit int32, token *string) (*Page, error) {
	var page *Page
	err := c.do(ctx, "list", "", func() error {
		out, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			MaxKeys:           aws.Int32(limit),
			ContinuationToken: token,
		})
		if err != nil {
			return err
		}

		keys := make([]*string, len(out.Contents))
		for i, obj := range out.Contents {
			keys[i] = obj.Key
		}
		page = &Page{Keys: keys}
		if aws.ToBool(out.IsTruncated) {
			page.ContinuationToken = out.NextContinuationToken
		}
		return nil
	})
	return page, err
}

// Delete removes key. Deleting a missing key succeeds.
func (c *Client) Delete(ctx context.Context, key string) error {
	err := c.do(ctx, "delete", key, func() error {
		_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if IsNotFound(err) {
		return nil
	}
	return err
}

// Presign returns a read URL for key valid for ttl. The key is not checked.
func (c *Client) Presign(ctx context.Context, key string, ttl time.Duration) (*PresignedURL, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	var url *PresignedURL
	err := c.do(ctx, "presign", key, func() error {
		req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(key),
		}, func(opts *s3.PresignOptions) {
			opts.Expires = ttl
		})
		if err != nil {
			return err
		}
		url = &PresignedURL{
			URL:       req.URL,
			Method:    req.Method,
			ExpiresAt: c.now().Add(ttl),
		}
		return nil
	})
	return url, err
}

// do runs one provider call with expiry check, classification, logging and metrics.
func (c *Client) do(ctx context.Context, op, key string, fn func() error) error {
	if c.creds != nil && c.creds.Expired(c.now()) {
		return &Error{Kind: KindTransport, Op: op, Key: key, Err: federation.ErrCredentialsExpired}
	}

	start := time.Now()
	err := fn()
	duration := time.Since(start)

	if err == nil {
		c.metrics.RecordStorageOperation(op, "success", duration)
		return nil
	}

	classified := classify(op, key, err)
	switch classified.Kind {
	case KindService:
		c.metrics.RecordStorageOperation(op, "service_error", duration)
		if op == "delete" && IsNotFound(classified) {
			return classified
		}
		c.logger.Warn("storage request rejected",
			zap.String("op", op),
			zap.String("key", key),
			zap.String("code", classified.Code),
			zap.String("message", classified.Message),
		)
	default:
		c.metrics.RecordStorageOperation(op, "transport_error", duration)
		if ctx.Err() == nil {
			c.logger.Error("storage request failed",
				zap.String("op", op),
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
	return classified
}
