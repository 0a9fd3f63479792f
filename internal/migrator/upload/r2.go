package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ksstormnet/cme-content-worker-sub001/internal/migrator/models"
	"github.com/ksstormnet/cme-content-worker-sub001/pkg/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

var (
	ErrR2EndpointRequired = errors.New("r2: endpoint URL is required")
	ErrR2BucketRequired   = errors.New("r2: bucket is required")
	ErrR2CredsRequired    = errors.New("r2: access key and secret key are required")
)

// R2Config configures a direct Cloudflare R2 upload target. R2 speaks the
// S3 API, so this is an S3 client pointed at a custom endpoint.
type R2Config struct {
	EndpointURL   string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	Timeout       time.Duration
}

// R2Uploader uploads media objects straight into an R2 bucket, bypassing
// the backend's upload route. Satisfies the pipeline's Uploader.
type R2Uploader struct {
	client  *s3.Client
	bucket  string
	baseURL string
	logger  zerolog.Logger
}

// NewR2Uploader builds the S3-compatible client. A dummy region keeps the
// SDK's signer happy; R2 ignores it. Redirects are not followed because
// S3-compatible endpoints answer relocations with 301s the SDK mishandles.
func NewR2Uploader(ctx context.Context, cfg R2Config) (*R2Uploader, error) {
	if cfg.EndpointURL == "" {
		return nil, ErrR2EndpointRequired
	}
	if cfg.Bucket == "" {
		return nil, ErrR2BucketRequired
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, ErrR2CredsRequired
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
		awsconfig.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.EndpointURL)
		o.UsePathStyle = true
	})

	return &R2Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:  util.NewLogger(zerolog.InfoLevel),
	}, nil
}

// Upload puts one object under the item's file path and returns its public
// URL.
func (u *R2Uploader) Upload(ctx context.Context, item models.MediaItem, body io.Reader) (string, error) {
	key := strings.TrimLeft(item.FilePath, "/")

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(item.MimeType),
	})
	if err != nil {
		u.logger.Error().Err(err).Str("key", key).Msg("r2 put failed")
		return "", err
	}

	if u.baseURL != "" {
		return u.baseURL + "/" + key, nil
	}
	return key, nil
}
