// Package backup lists, downloads, triggers and unpacks the volume backups
// written to S3 by the system stack's backup service.
package backup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/afero"

	"github.com/sarth-shah20/quay/internal/config"
)

// ErrNotConfigured is returned when the backup section of quay.yml is absent.
var ErrNotConfigured = errors.New("backup is not configured in quay.yml")

// region is only used for signing; S3-compatible endpoints ignore it.
const region = "us-east-1"

// Type classifies a backup by its file name prefix.
type Type string

const (
	Daily   Type = "daily"
	Weekly  Type = "weekly"
	Monthly Type = "monthly"
	Manual  Type = "manual"
	Unknown Type = "unknown"
)

// TypeOf returns the type encoded in a backup name.
func TypeOf(name string) Type {
	for _, t := range []Type{Daily, Weekly, Monthly, Manual} {
		if strings.HasPrefix(name, string(t)+"-") {
			return t
		}
	}
	return Unknown
}

// Info describes one backup object.
type Info struct {
	Name    string    `json:"name"`
	Type    Type      `json:"type"`
	Size    int64     `json:"size"`
	Created time.Time `json:"created"`
}

// API is the subset of the S3 client used here.
type API interface {
	s3.ListObjectsV2APIClient
	manager.DownloadAPIClient
}

// Client reads backups from the configured bucket.
type Client struct {
	API    API
	Bucket string
	// Fs receives downloads; nil means the OS filesystem.
	Fs afero.Fs
}

func (c *Client) fs() afero.Fs {
	if c.Fs == nil {
		return afero.NewOsFs()
	}
	return c.Fs
}

// NewClient builds an S3 client for cfg. The endpoint is addressed over
// HTTPS with path-style buckets.
func NewClient(ctx context.Context, cfg *config.Backup) (*Client, error) {
	if cfg == nil {
		return nil, ErrNotConfigured
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	endpoint := cfg.S3Endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &Client{API: client, Bucket: cfg.S3Bucket}, nil
}

// List returns every backup in the bucket, newest first.
func (c *Client) List(ctx context.Context) ([]Info, error) {
	var backups []Info
	pages := s3.NewListObjectsV2Paginator(c.API, &s3.ListObjectsV2Input{Bucket: aws.String(c.Bucket)})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list backups: %w", err)
		}
		for _, obj := range page.Contents {
			name := aws.ToString(obj.Key)
			backups = append(backups, Info{
				Name:    name,
				Type:    TypeOf(name),
				Size:    aws.ToInt64(obj.Size),
				Created: aws.ToTime(obj.LastModified),
			})
		}
	}
	sort.SliceStable(backups, func(i, j int) bool { return backups[i].Created.After(backups[j].Created) })
	return backups, nil
}

// Download writes the named backup to path.
func (c *Client) Download(ctx context.Context, name, path string) error {
	fs := c.fs()
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	dl := manager.NewDownloader(c.API)
	if _, err := dl.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(name),
	}); err != nil {
		f.Close()
		fs.Remove(path)
		return fmt.Errorf("failed to download backup %s: %w", name, err)
	}
	return f.Close()
}
