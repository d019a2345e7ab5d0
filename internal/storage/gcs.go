package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"lanecount/internal/config"
	"lanecount/internal/logging"
)

// GCSUploader stores artifacts as objects in a Google Cloud Storage bucket.
type GCSUploader struct {
	client *gcs.Client
	cfg    *config.Config
	logger *slog.Logger
}

// NewGCSUploader connects to the configured bucket. Credentials come from
// the configured service account file when set, otherwise from the
// environment's default credentials.
func NewGCSUploader(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*GCSUploader, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	var opts []option.ClientOption
	if cfg.Storage.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Storage.CredentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSUploader{
		client: client,
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "storage")),
	}, nil
}

// Upload streams the artifact file to the job's object key. The copy is
// chunked per the configured chunk size and bounded by the configured upload
// timeout. A transient failure is retried once before being reported.
func (u *GCSUploader) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.JobID == "" || req.SourcePath == "" {
		return nil, &FatalUploadError{Op: "validate", Err: fmt.Errorf("job id and source path are required")}
	}

	result, err := u.uploadOnce(ctx, req)
	if err != nil && IsTransient(err) && ctx.Err() == nil {
		u.logger.Warn("retrying artifact upload",
			logging.String(logging.FieldJobID, req.JobID),
			logging.Error(err))
		result, err = u.uploadOnce(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	u.logger.Info("artifact uploaded",
		logging.String(logging.FieldJobID, req.JobID),
		logging.String("object", result.ObjectKey),
		logging.Int64("size_bytes", result.SizeBytes))
	return result, nil
}

func (u *GCSUploader) uploadOnce(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	source, err := os.Open(req.SourcePath)
	if err != nil {
		return nil, &FatalUploadError{Op: "open source", Err: err}
	}
	defer source.Close()

	uploadCtx, cancel := context.WithTimeout(ctx, u.cfg.UploadTimeout())
	defer cancel()

	key := ObjectKey(u.cfg.Storage.Folder, req.JobID)
	writer := u.client.Bucket(u.cfg.Storage.Bucket).Object(key).NewWriter(uploadCtx)
	writer.ChunkSize = u.cfg.Storage.ChunkSizeBytes
	if req.ContentType != "" {
		writer.ContentType = req.ContentType
	}

	size, err := io.Copy(writer, source)
	if err != nil {
		_ = writer.Close()
		return nil, classifyError("copy", err)
	}
	if err := writer.Close(); err != nil {
		return nil, classifyError("close", err)
	}

	return &UploadResult{
		ObjectKey: key,
		URL:       fmt.Sprintf("https://storage.googleapis.com/%s/%s", u.cfg.Storage.Bucket, key),
		SizeBytes: size,
	}, nil
}

// Delete removes a stored artifact. Deleting an absent object is not an
// error; retention sweeps may run twice over the same job.
func (u *GCSUploader) Delete(ctx context.Context, objectKey string) error {
	err := u.client.Bucket(u.cfg.Storage.Bucket).Object(objectKey).Delete(ctx)
	if err != nil && err != gcs.ErrObjectNotExist {
		return classifyError("delete", err)
	}
	return nil
}

// Close releases the underlying client.
func (u *GCSUploader) Close() error {
	return u.client.Close()
}
