package album

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uniedit/album/internal/module/audit"
	"github.com/uniedit/album/internal/module/federation"
	"github.com/uniedit/album/internal/module/session"
	"github.com/uniedit/album/internal/module/storage"
	apperrors "github.com/uniedit/album/internal/shared/errors"
	"github.com/uniedit/album/internal/utils/requestctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Binder binds a storage bucket to a session's credentials.
type Binder interface {
	Bind(ctx context.Context, s *session.Session) (storage.Bucket, error)
}

// Service lists, uploads and deletes images for signed-in users.
type Service struct {
	binder           Binder
	audit            audit.Recorder
	logger           *zap.Logger
	presignBatchSize int
}

// NewService creates a new album service.
func NewService(binder Binder, recorder audit.Recorder, logger *zap.Logger) *Service {
	if recorder == nil {
		recorder = audit.NoopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		binder:           binder,
		audit:            recorder,
		logger:           logger.Named("album"),
		presignBatchSize: MaxLimit,
	}
}

// FetchImageURLs lists one page of keys and presigns every image key on it.
// Presigning runs concurrently; any failure fails the whole page.
func (s *Service) FetchImageURLs(ctx context.Context, sess *session.Session, req FetchRequest) (*ImagePage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	bucket, err := s.binder.Bind(ctx, sess)
	if err != nil {
		return nil, s.fetchFailure(ctx, err)
	}

	page, err := bucket.List(ctx, int32(req.Limit), req.NextToken)
	if err != nil {
		return nil, s.fetchFailure(ctx, err)
	}

	keys := ImageKeys(page.Keys)
	urls := make([]string, len(keys))
	ttl := time.Duration(req.SecondsToExpire) * time.Second

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.presignBatchSize)
	for i, key := range keys {
		g.Go(func() error {
			u, err := bucket.Presign(gctx, key, ttl)
			if err != nil {
				return err
			}
			urls[i] = u.URL
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, s.fetchFailure(ctx, err)
	}
	// Presigning is local work that may finish after the deadline; the
	// page is discarded as a unit.
	if err := ctx.Err(); err != nil {
		return nil, s.fetchFailure(ctx, err)
	}

	return &ImagePage{URLs: urls, NextToken: page.ContinuationToken}, nil
}

func (s *Service) fetchFailure(ctx context.Context, err error) error {
	return s.failure(ctx, "fetch", err, "Failed to fetch file keys: ", "Unexpected S3 error while fetching file keys")
}

// Upload stores an image. The filename defaults to <uuid>.<subtype>.
func (s *Service) Upload(ctx context.Context, sess *session.Session, req UploadRequest) (*UploadResult, error) {
	mediaType, err := ImageMediaType(req.ContentType)
	if err != nil {
		return nil, err
	}
	if len(req.Body) == 0 {
		return nil, apperrors.BadRequest("Uploaded file is empty.")
	}
	// Keys ending in a separator are directory markers and never listed.
	if strings.HasSuffix(req.Filename, "/") {
		return nil, apperrors.BadRequest("filename must not end with '/'.")
	}

	filename := req.Filename
	if filename == "" {
		filename = uuid.NewString() + "." + strings.TrimPrefix(mediaType, "image/")
	}

	bucket, err := s.binder.Bind(ctx, sess)
	if err == nil {
		err = bucket.Put(ctx, filename, req.Body, mediaType)
	}
	s.record(ctx, sess, audit.ActionUpload, filename, err)
	if err != nil {
		return nil, s.failure(ctx, "upload", err, "Upload failed: ", "Upload failed due to an unexpected error.")
	}

	return &UploadResult{ImagePath: filename}, nil
}

// Delete removes an image. Removing a missing image succeeds.
func (s *Service) Delete(ctx context.Context, sess *session.Session, filename string) error {
	if filename == "" {
		return apperrors.BadRequest("filename is required.")
	}

	bucket, err := s.binder.Bind(ctx, sess)
	if err == nil {
		err = bucket.Delete(ctx, filename)
	}
	s.record(ctx, sess, audit.ActionDelete, filename, err)
	if err != nil {
		return s.failure(ctx, "delete", err, "Delete failed: ", "Delete failed due to an unexpected error.")
	}
	return nil
}

// failure maps an operation error to what the caller sees. Sessions that
// cannot back a credential exchange become 401; provider rejections keep
// their message; anything else is reported generically.
func (s *Service) failure(ctx context.Context, op string, err error, servicePrefix, generic string) error {
	if errors.Is(err, federation.ErrNoAuthenticatedSession) || errors.Is(err, federation.ErrNotAuthorized) {
		s.logger.Info("session cannot access storage",
			zap.String("op", op),
			zap.String("request_id", requestctx.RequestID(ctx)),
			zap.Error(err),
		)
		return apperrors.Unauthorized("Unauthorized")
	}

	if msg, ok := storage.ServiceMessage(err); ok {
		return &OperationError{Message: servicePrefix + msg, Err: err}
	}

	if ctx.Err() == nil {
		s.logger.Error("image operation failed",
			zap.String("op", op),
			zap.String("request_id", requestctx.RequestID(ctx)),
			zap.Error(err),
		)
	}
	return &OperationError{Message: generic, Err: err}
}

func (s *Service) record(ctx context.Context, sess *session.Session, action audit.Action, key string, opErr error) {
	e := &audit.Event{
		Action:    action,
		Key:       key,
		Outcome:   audit.OutcomeSuccess,
		RequestID: requestctx.RequestID(ctx),
	}
	if sess != nil {
		e.Subject = sess.Subject
	}
	if opErr != nil {
		e.Outcome = audit.OutcomeFailure
	}

	if err := s.audit.Record(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn("audit record failed",
			zap.String("action", string(action)),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
