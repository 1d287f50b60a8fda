package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"camrec/internal/assembly"
	"camrec/internal/config"
	"camrec/internal/logging"
)

// Options configures an Uploader.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Prefix    string
	// DrainTimeout bounds how long Close waits for in-flight uploads before
	// cancelling them. Zero means 30 seconds.
	DrainTimeout time.Duration
}

// OptionsFromConfig maps the archive section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Endpoint:  cfg.Archive.Endpoint,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
		UseSSL:    cfg.Archive.UseSSL,
		Bucket:    cfg.Archive.Bucket,
		Prefix:    cfg.Archive.Prefix,
	}
}

// Uploader copies finished recordings to S3-compatible object storage.
type Uploader struct {
	client *miniogo.Client
	bucket string
	prefix string
	logger *slog.Logger

	drainTimeout time.Duration
	baseCtx      context.Context
	cancel       context.CancelFunc
	inflight     sync.WaitGroup
}

// NewUploader builds a MinIO client. It does not contact the server.
func NewUploader(opts Options, logger *slog.Logger) (*Uploader, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("archive endpoint is required")
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	client, err := miniogo.New(endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	drain := opts.DrainTimeout
	if drain <= 0 {
		drain = 30 * time.Second
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Uploader{
		client:       client,
		bucket:       bucket,
		prefix:       strings.Trim(opts.Prefix, "/"),
		logger:       logging.NewComponentLogger(logger, "archive"),
		drainTimeout: drain,
		baseCtx:      baseCtx,
		cancel:       cancel,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, miniogo.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", u.bucket, err)
	}
	return nil
}

// ObjectKey maps a recordings-relative filename to its object key.
func (u *Uploader) ObjectKey(filename string) string {
	return ObjectKey(u.prefix, filename)
}

// ObjectKey joins prefix and the slash-separated recording filename.
func ObjectKey(prefix, filename string) string {
	filename = strings.TrimPrefix(path.Clean("/"+filename), "/")
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return filename
	}
	return prefix + "/" + filename
}

// Upload copies the local video at localPath under the key for filename.
func (u *Uploader) Upload(ctx context.Context, localPath, filename string) (miniogo.UploadInfo, error) {
	key := u.ObjectKey(filename)
	info, err := u.client.FPutObject(ctx, u.bucket, key, localPath, miniogo.PutObjectOptions{
		ContentType: "video/mp4",
	})
	if err != nil {
		return miniogo.UploadInfo{}, fmt.Errorf("upload %s: %w", key, err)
	}
	return info, nil
}

// Close waits for in-flight uploads. Uploads still running after the drain
// timeout are cancelled and Close reports it.
func (u *Uploader) Close() error {
	done := make(chan struct{})
	go func() {
		u.inflight.Wait()
		close(done)
	}()
	timer := time.NewTimer(u.drainTimeout)
	defer timer.Stop()
	select {
	case <-done:
		u.cancel()
		return nil
	case <-timer.C:
		u.cancel()
		<-done
		return fmt.Errorf("archive uploads cancelled after %s drain", u.drainTimeout)
	}
}

// Hook returns an assembler commit hook that uploads each recording in the
// background. Failures are logged; the local copy stays authoritative. Close
// drains uploads started here.
func (u *Uploader) Hook(timeout time.Duration) func(context.Context, assembly.Committed) {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return func(ctx context.Context, c assembly.Committed) {
		logger := logging.WithContext(ctx, u.logger)
		u.inflight.Add(1)
		go func() {
			defer u.inflight.Done()
			upCtx, cancel := context.WithTimeout(u.baseCtx, timeout)
			defer cancel()
			info, err := u.Upload(upCtx, c.VideoPath, c.Record.Filename)
			if err != nil {
				logging.WarnWithContext(logger, "recording archive upload failed", "archive_upload_failed",
					logging.Int64(logging.FieldRecordingID, c.Record.ID),
					logging.String("filename", c.Record.Filename),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check archive endpoint, credentials and bucket"),
					logging.String(logging.FieldImpact, "recording exists only on local disk"),
				)
				return
			}
			logger.Info("recording archived",
				logging.Int64(logging.FieldRecordingID, c.Record.ID),
				logging.String("bucket", info.Bucket),
				logging.String("key", info.Key),
				logging.Int64("size", info.Size),
				logging.String(logging.FieldEventType, "recording_archived"),
			)
		}()
	}
}
