package storage

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Kind tags a storage failure.
type Kind string

const (
	// KindService means the provider rejected a well-formed request.
	KindService Kind = "service"
	// KindTransport covers network, serialization and anything unclassified.
	KindTransport Kind = "transport"
)

// Error is the failure returned by every storage operation.
type Error struct {
	Kind    Kind
	Op      string
	Key     string
	Code    string // provider error code, service errors only
	Message string // provider message, service errors only
	Err     error
}

func (e *Error) Error() string {
	target := e.Op
	if e.Key != "" {
		target += " " + e.Key
	}
	if e.Kind == KindService {
		return fmt.Sprintf("storage %s: %s: %s", target, e.Code, e.Message)
	}
	return fmt.Sprintf("storage %s: %v", target, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsService reports whether err is a provider-classified failure.
func IsService(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindService
}

// IsNotFound reports whether err is the provider's missing-object error.
func IsNotFound(err error) bool {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindService {
		return false
	}
	return e.Code == "NoSuchKey" || e.Code == "NotFound"
}

// ServiceMessage returns the provider message of a service error.
func ServiceMessage(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindService {
		return e.Message, true
	}
	return "", false
}

func classify(op, key string, err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.ErrorMessage()
		if msg == "" {
			msg = apiErr.ErrorCode()
		}
		return &Error{
			Kind:    KindService,
			Op:      op,
			Key:     key,
			Code:    apiErr.ErrorCode(),
			Message: msg,
			Err:     err,
		}
	}
	return &Error{Kind: KindTransport, Op: op, Key: key, Err: err}
}
