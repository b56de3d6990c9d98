package session

import (
	"errors"
	"time"
)

// ErrorState flags a session whose tokens can no longer be trusted.
type ErrorState int

const (
	ErrorNone ErrorState = iota
	ErrorRefreshFailed
)

func (e ErrorState) String() string {
	switch e {
	case ErrorNone:
		return "none"
	case ErrorRefreshFailed:
		return "refresh_failed"
	default:
		return "unknown"
	}
}

// Session is the token set of one signed-in user agent.
type Session struct {
	ID            string     `json:"id"`
	Subject       string     `json:"sub"`
	IdentityToken string     `json:"identity_token"`
	AccessToken   string     `json:"access_token,omitempty"`
	RefreshToken  string     `json:"refresh_token,omitempty"`
	ExpiresAt     time.Time  `json:"expires_at"`
	Error         ErrorState `json:"error"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Valid reports whether the access token can be used at now.
func (s *Session) Valid(now time.Time) bool {
	return s.AccessToken != "" && now.Before(s.ExpiresAt)
}

// Authenticated reports whether the session may back a credential exchange.
func (s *Session) Authenticated() bool {
	return s != nil && s.Error == ErrorNone && s.IdentityToken != ""
}

// Clone returns a copy that can be mutated without affecting s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Tokens is the result of a successful token endpoint call.
type Tokens struct {
	AccessToken   string
	IdentityToken string
	// RefreshToken is empty when the provider did not rotate it.
	RefreshToken string
	ExpiresIn    time.Duration
}

var (
	ErrNotFound            = errors.New("session not found")
	ErrMissingRefreshToken = errors.New("session has no refresh token")
	ErrRefreshFailed       = errors.New("session token refresh failed")

	ErrRefreshRejected        = errors.New("token endpoint rejected refresh")
	ErrMalformedTokenResponse = errors.New("malformed token endpoint response")
	ErrTokenEndpoint          = errors.New("token endpoint unreachable")

	ErrDecryptionFailed = errors.New("decryption failed")
)
