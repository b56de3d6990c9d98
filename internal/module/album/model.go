package album

import (
	"mime"
	"strings"

	apperrors "github.com/uniedit/album/internal/shared/errors"
)

const (
	MinLimit     = 1
	MaxLimit     = 100
	DefaultLimit = 20
)

// FetchRequest asks for one page of image URLs.
type FetchRequest struct {
	Limit           int
	NextToken       *string
	SecondsToExpire int
}

// Validate checks the request bounds.
func (r FetchRequest) Validate() error {
	if r.Limit < MinLimit || r.Limit > MaxLimit {
		return apperrors.BadRequest("Limit must be between 1 and 100.")
	}
	if r.SecondsToExpire <= 0 {
		return apperrors.BadRequest("ExpiresIn must be greater than 0.")
	}
	return nil
}

// ImagePage is one page of presigned image URLs. NextToken is nil on the
// last page and is encoded as an explicit null.
type ImagePage struct {
	URLs      []string `json:"urls"`
	NextToken *string  `json:"nextToken"`
}

// UploadRequest is a raw image upload.
type UploadRequest struct {
	Filename    string
	ContentType string
	Body        []byte
}

// UploadResult names the stored object.
type UploadResult struct {
	ImagePath string `json:"imagePath"`
}

// OperationError is a storage failure reported to callers with a
// stage-prefixed message. Err keeps the underlying cause for logging.
type OperationError struct {
	Message string
	Err     error
}

func (e *OperationError) Error() string {
	return e.Message
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// ImageKeys drops absent keys and directory markers, keeping order.
func ImageKeys(keys []*string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == nil || *k == "" || strings.HasSuffix(*k, "/") {
			continue
		}
		out = append(out, *k)
	}
	return out
}

// ImageMediaType returns the media type of an image Content-Type header
// without its parameters.
func ImageMediaType(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return "", apperrors.BadRequest("Content-Type is missing.")
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") || len(mediaType) == len("image/") {
		return "", apperrors.UnsupportedMediaType("Invalid Content-Type. Only image file is allowed.")
	}
	return mediaType, nil
}
