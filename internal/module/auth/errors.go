package auth

import "errors"

// Auth module errors.
var (
	// Token errors
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidTokenClaims = errors.New("invalid token claims")

	// OAuth errors
	ErrInvalidOAuthCode     = errors.New("invalid OAuth code")
	ErrInvalidOAuthState    = errors.New("invalid OAuth state")
	ErrOAuthFailed          = errors.New("OAuth authentication failed")
	ErrMissingIdentityToken = errors.New("identity token missing from token response")

	// Session errors
	ErrUnauthorized = errors.New("unauthorized")
)
