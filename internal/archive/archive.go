// Package archive uploads rendered report HTML to S3-compatible object
// storage.
package archive

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/exitschool/offmarket/internal/config"
	"github.com/exitschool/offmarket/internal/model"
)

const contentTypeHTML = "text/html; charset=utf-8"

// objectStore is the subset of *minio.Client the archiver uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Archiver stores report HTML under reports/<company>/<report>.html. A nil
// Archiver is valid and stores nothing.
type Archiver struct {
	client objectStore
	bucket string
}

// New connects to the configured endpoint and makes sure the bucket exists.
// It returns nil without error when no endpoint is configured.
func New(ctx context.Context, cfg config.ArchiveConfig) (*Archiver, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "archive: create client")
	}
	a := &Archiver{client: cli, bucket: cfg.Bucket}
	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}
	zap.L().Info("archive: enabled", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return a, nil
}

func (a *Archiver) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return eris.Wrapf(err, "archive: check bucket %s", a.bucket)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return eris.Wrapf(err, "archive: create bucket %s", a.bucket)
	}
	return nil
}

// Key returns the object key for a report.
func Key(companyID, reportID string) string {
	return path.Join("reports", companyID, reportID+".html")
}

// Put uploads the report's HTML and returns its object key.
func (a *Archiver) Put(ctx context.Context, r model.Report) (string, error) {
	if a == nil {
		return "", nil
	}
	if r.ID == "" || r.CompanyID == "" {
		return "", eris.New("archive: report id and company id are required")
	}
	key := Key(r.CompanyID, r.ID)
	_, err := a.client.PutObject(ctx, a.bucket, key, strings.NewReader(r.ContentHTML), int64(len(r.ContentHTML)), minio.PutObjectOptions{
		ContentType: contentTypeHTML,
		UserMetadata: map[string]string{
			"tier":       string(r.Tier),
			"company-id": r.CompanyID,
		},
	})
	if err != nil {
		return "", eris.Wrapf(err, "archive: put %s", key)
	}
	return key, nil
}
