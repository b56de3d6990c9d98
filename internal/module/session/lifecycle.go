package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uniedit/album/internal/utils/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Lifecycle keeps a session's access token valid, refreshing it at most once
// per expiry window no matter how many requests observe the expiry.
type Lifecycle struct {
	store     Store
	refresher Refresher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	group     singleflight.Group
	now       func() time.Time
}

// NewLifecycle creates a Lifecycle.
func NewLifecycle(store Store, refresher Refresher, m *metrics.Metrics, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{
		store:     store,
		refresher: refresher,
		metrics:   m,
		logger:    logger.Named("session"),
		now:       time.Now,
	}
}

// EnsureValid returns s when its access token is still valid, otherwise the
// refreshed session. A rejected refresh flags the stored session and returns
// it together with ErrRefreshFailed.
func (l *Lifecycle) EnsureValid(ctx context.Context, s *Session) (*Session, error) {
	if s == nil {
		return nil, ErrNotFound
	}
	if s.Error != ErrorNone {
		return s, ErrRefreshFailed
	}
	if s.Valid(l.now()) {
		return s, nil
	}
	if s.RefreshToken == "" {
		return s, ErrMissingRefreshToken
	}

	// The flight outlives any single caller so one cancelled request
	// does not fail the others waiting on it.
	flightCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(s.ID, func() (any, error) {
		return l.refresh(flightCtx, s)
	})

	select {
	case <-ctx.Done():
		return s, ctx.Err()
	case res := <-ch:
		refreshed, _ := res.Val.(*Session)
		if refreshed == nil {
			refreshed = s
		}
		return refreshed, res.Err
	}
}

func (l *Lifecycle) refresh(ctx context.Context, s *Session) (*Session, error) {
	current, err := l.store.Get(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	if current.Error != ErrorNone {
		return current, ErrRefreshFailed
	}
	if current.Valid(l.now()) {
		return current, nil
	}
	if current.RefreshToken == "" {
		return current, ErrMissingRefreshToken
	}

	tokens, err := l.refresher.Refresh(ctx, current.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenEndpoint) {
			l.metrics.RecordTokenRefresh("error")
			l.logger.Warn("token refresh transport failure",
				zap.String("session_id", current.ID),
				zap.Error(err),
			)
			return current, err
		}

		l.metrics.RecordTokenRefresh("rejected")
		l.logger.Warn("token refresh rejected",
			zap.String("session_id", current.ID),
			zap.Error(err),
		)
		failed := current.Clone()
		failed.Error = ErrorRefreshFailed
		if putErr := l.store.Replace(ctx, failed); putErr != nil {
			if errors.Is(putErr, ErrNotFound) {
				return nil, ErrNotFound
			}
			l.logger.Error("flag session", zap.String("session_id", failed.ID), zap.Error(putErr))
		}
		return failed, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	updated := current.Clone()
	updated.AccessToken = tokens.AccessToken
	updated.IdentityToken = tokens.IdentityToken
	updated.ExpiresAt = l.now().Add(tokens.ExpiresIn)
	if tokens.RefreshToken != "" {
		updated.RefreshToken = tokens.RefreshToken
	}

	// The session may have been signed out while the token endpoint was busy.
	if err := l.store.Replace(ctx, updated); err != nil {
		if errors.Is(err, ErrNotFound) {
			l.logger.Info("session closed during refresh", zap.String("session_id", updated.ID))
			return nil, ErrNotFound
		}
		return current, fmt.Errorf("store refreshed session: %w", err)
	}

	l.metrics.RecordTokenRefresh("success")
	l.logger.Info("token refreshed",
		zap.String("session_id", updated.ID),
		zap.Time("expires_at", updated.ExpiresAt),
	)
	return updated, nil
}
