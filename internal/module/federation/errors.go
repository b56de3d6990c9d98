package federation

import "errors"

var (
	// ErrNoAuthenticatedSession means there is no usable identity token.
	// Callers must re-authenticate.
	ErrNoAuthenticatedSession = errors.New("no authenticated session")

	// ErrInvalidConfig is a deployment defect found at startup.
	ErrInvalidConfig = errors.New("invalid federation config")

	// ErrNotAuthorized means the identity pool refused the identity token.
	ErrNotAuthorized = errors.New("identity token not accepted by identity pool")

	// ErrExchangeFailed covers every other exchange failure.
	ErrExchangeFailed = errors.New("credential exchange failed")

	// ErrCredentialsExpired is returned for credentials past their expiration.
	ErrCredentialsExpired = errors.New("federated credentials expired")
)
