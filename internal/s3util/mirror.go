// Package s3util mirrors report files to an S3 bucket and fetches them back.
package s3util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ReportMirror uploads report files under a key prefix in one bucket.
type ReportMirror struct {
	client    objectAPI
	presigner presignAPI
	bucket    string
	prefix    string
}

// NewReportMirror loads the default AWS configuration and returns a mirror
// for bucket. prefix may be empty.
func NewReportMirror(ctx context.Context, bucket, prefix string) (*ReportMirror, error) {
	if bucket == "" {
		return nil, errors.New("report bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Str("bucket", bucket).Msg("AWS config loaded")

	client := s3.NewFromConfig(cfg)
	return newReportMirror(client, s3.NewPresignClient(client), bucket, prefix), nil
}

func newReportMirror(client objectAPI, presigner presignAPI, bucket, prefix string) *ReportMirror {
	return &ReportMirror{
		client:    client,
		presigner: presigner,
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
	}
}

// Bucket returns the destination bucket.
func (m *ReportMirror) Bucket() string {
	return m.bucket
}

// Key returns the object key used for a report file name.
func (m *ReportMirror) Key(name string) string {
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

// Upload copies the file at localPath to the bucket and returns its key.
func (m *ReportMirror) Upload(ctx context.Context, localPath string) (string, error) {
	key := m.Key(filepath.Base(localPath))

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	log.Debug().Str("bucket", m.bucket).Str("key", key).Str("path", localPath).Msg("Uploading report to S3")

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentTypeFor(localPath)),
		Tagging:     ProjectTagging(),
	})
	if err != nil {
		return "", fmt.Errorf("S3 PutObject: %w", err)
	}

	log.Info().Str("bucket", m.bucket).Str("key", key).Msg("Report uploaded to S3")
	return key, nil
}

// Download fetches a mirrored report into dir and returns the local path.
// The file is written under a temp name and renamed once complete.
func (m *ReportMirror) Download(ctx context.Context, name, dir string) (string, error) {
	key := m.Key(name)
	log.Debug().Str("bucket", m.bucket).Str("key", key).Msg("Downloading report from S3")

	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("S3 GetObject: %w", err)
	}
	defer result.Body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, result.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close: %w", err)
	}

	dest := filepath.Join(dir, filepath.Base(name))
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename: %w", err)
	}
	return dest, nil
}

// PresignedURL returns a time-limited GET URL for a mirrored report.
func (m *ReportMirror) PresignedURL(ctx context.Context, name string, expiry time.Duration) (string, error) {
	if m.presigner == nil {
		return "", errors.New("presigning is not available")
	}
	req, err := m.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.Key(name)),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject: %w", err)
	}
	return req.URL, nil
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return xlsxContentType
	case ".csv":
		return "text/csv"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
