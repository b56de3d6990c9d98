package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uniedit/album/internal/module/auth/oauth"
	"github.com/uniedit/album/internal/module/session"
	"github.com/uniedit/album/internal/utils/metrics"
	"github.com/uniedit/album/internal/utils/random"
	"go.uber.org/zap"
)

// Service provides sign-in, sign-out and session authentication.
type Service struct {
	sessions   session.Store
	provider   oauth.Provider
	jwt        *JWTManager
	stateStore StateStore
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a new auth service.
func NewService(
	sessions session.Store,
	provider oauth.Provider,
	stateStore StateStore,
	jwtConfig *JWTConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions:   sessions,
		provider:   provider,
		jwt:        NewJWTManager(jwtConfig),
		stateStore: stateStore,
		metrics:    m,
		logger:     logger.Named("auth"),
		now:        time.Now,
	}
}

// LoginResponse carries the provider URL the user agent must visit.
type LoginResponse struct {
	AuthURL string `json:"authUrl"`
	State   string `json:"state"`
}

// LoginResult is a completed sign-in.
type LoginResult struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Session   *session.Session `json:"-"`
}

// --- OAuth Operations ---

// InitiateLogin starts the authorization code flow.
func (s *Service) InitiateLogin(ctx context.Context) (*LoginResponse, error) {
	state, err := random.SecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}

	if err := s.stateStore.Set(ctx, state, "pending"); err != nil {
		return nil, fmt.Errorf("store state: %w", err)
	}

	return &LoginResponse{
		AuthURL: s.provider.AuthURL(state),
		State:   state,
	}, nil
}

// CompleteLogin exchanges the authorization code and opens a session.
func (s *Service) CompleteLogin(ctx context.Context, code, state string) (*LoginResult, error) {
	if code == "" {
		return nil, ErrInvalidOAuthCode
	}
	if state == "" {
		return nil, ErrInvalidOAuthState
	}

	if _, err := s.stateStore.Get(ctx, state); err != nil {
		return nil, err
	}
	// States are single use.
	_ = s.stateStore.Delete(ctx, state)

	tok, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.metrics.RecordAuthEvent("login_failed")
		return nil, fmt.Errorf("%w: %v", ErrOAuthFailed, err)
	}

	tokens, err := session.TokensFromOAuth2(tok, "")
	if err != nil {
		s.metrics.RecordAuthEvent("login_failed")
		return nil, fmt.Errorf("%w: %v", ErrMissingIdentityToken, err)
	}

	subject, err := SubjectFromIdentityToken(tokens.IdentityToken)
	if err != nil {
		s.metrics.RecordAuthEvent("login_failed")
		return nil, err
	}

	now := s.now()
	sess := &session.Session{
		ID:            uuid.NewString(),
		Subject:       subject,
		IdentityToken: tokens.IdentityToken,
		AccessToken:   tokens.AccessToken,
		RefreshToken:  tokens.RefreshToken,
		ExpiresAt:     now.Add(tokens.ExpiresIn),
		Error:         session.ErrorNone,
		CreatedAt:     now,
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	token, expiresAt, err := s.jwt.GenerateSessionToken(sess.ID, subject)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthEvent("login")
	s.logger.Info("session opened",
		zap.String("session_id", sess.ID),
		zap.String("sub", subject),
		zap.Bool("refreshable", sess.RefreshToken != ""),
	)

	return &LoginResult{Token: token, ExpiresAt: expiresAt, Session: sess}, nil
}

// --- Session Operations ---

// Authenticate resolves a session token to its stored session. Sessions
// flagged by a failed refresh are rejected.
func (s *Service) Authenticate(ctx context.Context, token string) (*session.Session, error) {
	claims, err := s.jwt.ValidateSessionToken(token)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.Error != session.ErrorNone {
		return nil, fmt.Errorf("%w: session %s", ErrUnauthorized, sess.Error)
	}

	return sess, nil
}

// Logout destroys the session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.metrics.RecordAuthEvent("logout")
	s.logger.Info("session closed", zap.String("session_id", sessionID))
	return nil
}

// TokenExpiry returns the session token lifetime.
func (s *Service) TokenExpiry() time.Duration {
	return s.jwt.GetExpiry()
}
