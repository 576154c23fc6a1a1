package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds object storage settings. Empty keys use the default
// credential chain; Endpoint targets S3-compatible stores such as MinIO.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// S3Downloader copies objects addressed as s3://bucket/key into a directory.
type S3Downloader struct {
	client *s3.Client
	dir    string
	logger *slog.Logger
}

// NewS3Downloader loads AWS configuration and builds an S3 client.
func NewS3Downloader(ctx context.Context, cfg S3Config, dir string, logger *slog.Logger) (*S3Downloader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
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
	return &S3Downloader{client: client, dir: dir, logger: logger}, nil
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse s3 url: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("not an s3 url: %q", raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("s3 url %q has no key", raw)
	}
	return u.Host, key, nil
}

// Download fetches the object and returns its local path.
func (d *S3Downloader) Download(ctx context.Context, raw string) (string, error) {
	bucket, key, err := ParseS3URL(raw)
	if err != nil {
		return "", err
	}
	dir, err := newDownloadDir(d.dir)
	if err != nil {
		return "", err
	}

	name := path.Base(key)
	if name == "" || name == "." || name == "/" {
		name = DefaultFileName
	}
	dest := filepath.Join(dir, name)

	f, err := os.Create(dest)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("create %s: %w", dest, err)
	}
	defer f.Close()

	n, err := manager.NewDownloader(d.client).Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("%w: s3://%s/%s: %v", ErrFetchFailed, bucket, key, err)
	}

	d.logger.Info("Downloaded object", "bucket", bucket, "key", key, "bytes", n, "path", dest)
	return dest, nil
}
