package errors

import (
	"errors"
	"fmt"
	"go/format"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns message", func(t *testing.T) {
		err := &AppError{Code: "TEST_ERROR", Message: "test error message"}
		assert.Equal(t, "test error message", err.Error())
	})

	t.Run("Error includes wrapped error", func(t *testing.T) {
		wrapped := errors.New("wrapped error")
		err := Internal("Upload failed due to an unexpected error.", wrapped)
		assert.Contains(t, err.Error(), "Upload failed")
		assert.Contains(t, err.Error(), "wrapped error")
		assert.Equal(t, wrapped, err.Unwrap())
	})

	t.Run("ToResponse carries only the message", func(t *testing.T) {
		resp := BadRequest("filename is required.").ToResponse()
		assert.Equal(t, ErrorResponse{Message: "filename is required."}, resp)
	})
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"not found", NotFound("image"), "NOT_FOUND", http.StatusNotFound},
		{"unauthorized", Unauthorized(""), "UNAUTHORIZED", http.StatusUnauthorized},
		{"bad request", BadRequest("Content-Type is missing."), "BAD_REQUEST", http.StatusBadRequest},
		{"unsupported", UnsupportedMediaType("Invalid Content-Type. Only image file is allowed."), "UNSUPPORTED_MEDIA_TYPE", http.StatusUnsupportedMediaType},
		{"too large", PayloadTooLarge(""), "PAYLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge},
		{"internal", Internal("boom", nil), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.StatusCode)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestGetStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"app error", PayloadTooLarge(""), http.StatusRequestEntityTooLarge},
		{"wrapped app error", fmt.Errorf("handler: %w", Unauthorized("")), http.StatusUnauthorized},
		{"sentinel not found", ErrNotFound, http.StatusNotFound},
		{"sentinel unsupported", fmt.Errorf("x: %w", ErrUnsupported), http.StatusUnsupportedMediaType},
		{"sentinel bad request", ErrBadRequest, http.StatusBadRequest},
		{"unknown", errors.New("other"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetStatusCode(tt.err))
		})
	}
}

func TestSourcesAreFormatted(t *testing.T) {
	files, err := filepath.Glob("*.go")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		if strings.HasSuffix(f, "_test.go") {
			continue
		}
		src, err := os.ReadFile(f)
		require.NoError(t, err)
		formatted, err := format.Source(src)
		require.NoError(t, err, f)
		assert.Equal(t, string(formatted), string(src), "%s is not gofmt-clean", f)
	}
}
