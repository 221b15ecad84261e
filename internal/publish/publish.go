// Package publish uploads packaged addons to S3-compatible object storage.
package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"c3addon-builder/internal/config"
	"c3addon-builder/internal/logging"
)

// ContentType is sent with every archive.
const ContentType = "application/zip"

// objectStore is the subset of *minio.Client the publisher uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Publisher uploads archives to one bucket.
type Publisher struct {
	store  objectStore
	bucket string
	prefix string
	region string
	log    *zap.Logger

	initOnce sync.Once
	initErr  error
}

// Upload describes one uploaded archive.
type Upload struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string
}

// New connects to the configured endpoint.
func New(cfg config.Publish, log *zap.Logger) (*Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("publish endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("publish access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("publish bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return newPublisher(client, bucket, cfg.Prefix, region, log), nil
}

func newPublisher(store objectStore, bucket, prefix, region string, log *zap.Logger) *Publisher {
	return &Publisher{
		store:  store,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		region: region,
		log:    logging.OrNop(log),
	}
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	p.initOnce.Do(func() {
		exists, err := p.store.BucketExists(ctx, p.bucket)
		if err != nil {
			p.initErr = err
			return
		}
		if exists {
			return
		}
		p.log.Info("creating bucket", zap.String("bucket", p.bucket))
		p.initErr = p.store.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
	})
	return p.initErr
}

// Key is the object key an archive is stored under.
func (p *Publisher) Key(archive string) string {
	return path.Join(p.prefix, filepath.Base(archive))
}

// Publish uploads the archive at archivePath. meta is attached as user
// metadata (addon id, version).
func (p *Publisher) Publish(ctx context.Context, archivePath string, meta map[string]string) (Upload, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return Upload{}, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return Upload{}, err
	}
	if err := p.ensureBucket(ctx); err != nil {
		return Upload{}, fmt.Errorf("ensure bucket: %w", err)
	}
	key := p.Key(archivePath)
	info, err := p.store.PutObject(ctx, p.bucket, key, f, st.Size(), minio.PutObjectOptions{
		ContentType:  ContentType,
		UserMetadata: meta,
	})
	if err != nil {
		return Upload{}, fmt.Errorf("put %s/%s: %w", p.bucket, key, err)
	}
	p.log.Info("published", zap.String("bucket", p.bucket), zap.String("key", key), zap.Int64("bytes", st.Size()))
	return Upload{Bucket: p.bucket, Key: key, Size: st.Size(), ETag: info.ETag}, nil
}
