package federation

import (
	"context"
	"errors"
	"fmt"

	"github.com/uniedit/album/internal/module/session"
)

// TokenKeeper keeps a session's tokens valid.
type TokenKeeper interface {
	EnsureValid(ctx context.Context, s *session.Session) (*session.Session, error)
}

// CredentialExchanger turns a valid session into storage credentials.
type CredentialExchanger interface {
	Exchange(ctx context.Context, s *session.Session) (*Credentials, error)
}

// Resolver produces credentials for a session, refreshing its tokens first.
type Resolver struct {
	tokens    TokenKeeper
	exchanger CredentialExchanger
}

// NewResolver creates a Resolver.
func NewResolver(tokens TokenKeeper, exchanger CredentialExchanger) *Resolver {
	return &Resolver{tokens: tokens, exchanger: exchanger}
}

// Resolve returns credentials valid for immediate use. Session states that
// require signing in again are reported as ErrNoAuthenticatedSession.
func (r *Resolver) Resolve(ctx context.Context, s *session.Session) (*Credentials, error) {
	if s == nil {
		return nil, ErrNoAuthenticatedSession
	}

	valid, err := r.tokens.EnsureValid(ctx, s)
	if err != nil {
		if errors.Is(err, session.ErrRefreshFailed) ||
			errors.Is(err, session.ErrMissingRefreshToken) ||
			errors.Is(err, session.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNoAuthenticatedSession, err)
		}
		return nil, err
	}

	return r.exchanger.Exchange(ctx, valid)
}
