// Package objectstore uploads restored vault files to an S3-compatible
// bucket.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Scheme prefixes restore destinations that target the object store.
const Scheme = "s3://"

// Config holds connection settings for the object store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// Enabled reports whether an endpoint is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// Validate checks required fields.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Endpoint) == "" {
		missing = append(missing, "endpoint")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		missing = append(missing, "access key")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		missing = append(missing, "secret key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("object store config missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// NewMinIOClient builds a client for cfg.
func NewMinIOClient(cfg Config) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	}
	return minio.New(cfg.Endpoint, opts)
}

// ParseDestination splits "s3://bucket/prefix" into its parts.
func ParseDestination(dest string) (bucket, prefix string, ok bool) {
	if !strings.HasPrefix(dest, Scheme) {
		return "", "", false
	}
	rest := strings.TrimPrefix(dest, Scheme)
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false
	}
	return bucket, strings.Trim(prefix, "/"), true
}

// Sink uploads files under a key prefix.
type Sink struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewSink returns a Sink for bucket, creating the bucket when absent.
func NewSink(ctx context.Context, client *minio.Client, bucket, prefix, region string) (*Sink, error) {
	if err := ensureBucket(ctx, client, bucket, region); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", bucket, err)
	}
	return &Sink{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *Sink) String() string {
	return Scheme + path.Join(s.bucket, s.prefix)
}

// Key returns the object key for a restored file name.
func (s *Sink) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Put uploads r as Key(name). The source modification time is stored in
// the object's user metadata.
func (s *Sink) Put(ctx context.Context, name string, r io.Reader, info fs.FileInfo) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.Key(name), r, info.Size(), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
		UserMetadata: map[string]string{
			"source-mtime": info.ModTime().UTC().Format(time.RFC3339Nano),
		},
	})
	return err
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string, region string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
