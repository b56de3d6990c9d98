package album

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/album/internal/module/session"
	apperrors "github.com/uniedit/album/internal/shared/errors"
)

// HandlerConfig holds request defaults and limits.
type HandlerConfig struct {
	DefaultExpiry  time.Duration
	MaxUploadBytes int64
}

// Handler handles HTTP requests for images.
type Handler struct {
	service *Service
	config  HandlerConfig
}

// NewHandler creates a new image handler.
func NewHandler(service *Service, config HandlerConfig) *Handler {
	if config.DefaultExpiry <= 0 {
		config.DefaultExpiry = time.Hour
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 20 << 20
	}
	return &Handler{service: service, config: config}
}

// RegisterRoutes registers image routes behind requireSession.
func (h *Handler) RegisterRoutes(r gin.IRouter, requireSession gin.HandlerFunc) {
	images := r.Group("/images", requireSession)
	{
		images.GET("", h.List)
		images.POST("/upload", h.Upload)
		images.DELETE("/delete", h.Delete)
	}
}

// List returns one page of presigned image URLs.
//
//	@Summary		List images
//	@Description	Returns one page of presigned download URLs for the caller's images
//	@Tags			Images
//	@Produce		json
//	@Security		BearerAuth
//	@Param			limit		query		int		false	"Page size (1-1000)"	default(20)
//	@Param			nextToken	query		string	false	"Continuation token from the previous page"
//	@Param			expiresIn	query		int		false	"URL lifetime in seconds"
//	@Success		200			{object}	ImagePage
//	@Failure		400			{object}	apperrors.ErrorResponse	"Invalid query"
//	@Failure		401			{object}	apperrors.ErrorResponse	"Unauthorized"
//	@Failure		500			{object}	apperrors.ErrorResponse	"Storage failure"
//	@Router			/images [get]
func (h *Handler) List(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	req := FetchRequest{
		Limit:           DefaultLimit,
		SecondsToExpire: int(h.config.DefaultExpiry / time.Second),
	}
	// Non-numeric values parse as 0 and fail validation.
	if v, ok := c.GetQuery("limit"); ok {
		req.Limit, _ = strconv.Atoi(v)
	}
	if v, ok := c.GetQuery("expiresIn"); ok {
		req.SecondsToExpire, _ = strconv.Atoi(v)
	}
	if v := c.Query("nextToken"); v != "" {
		req.NextToken = &v
	}

	if err := req.Validate(); err != nil {
		h.handleError(c, err)
		return
	}

	page, err := h.service.FetchImageURLs(c.Request.Context(), sess, req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// Upload stores the raw request body as an image.
//
//	@Summary		Upload image
//	@Description	Stores the raw request body under the caller's prefix
//	@Tags			Images
//	@Accept			image/png,image/jpeg,image/gif,image/webp
//	@Produce		json
//	@Security		BearerAuth
//	@Param			filename	query		string	false	"Object name; generated when empty"
//	@Success		200			{object}	UploadResult
//	@Failure		400			{object}	apperrors.ErrorResponse	"Invalid request"
//	@Failure		401			{object}	apperrors.ErrorResponse	"Unauthorized"
//	@Failure		413			{object}	apperrors.ErrorResponse	"Uploaded file is too large"
//	@Failure		415			{object}	apperrors.ErrorResponse	"Not an image"
//	@Failure		500			{object}	apperrors.ErrorResponse	"Storage failure"
//	@Router			/images/upload [post]
func (h *Handler) Upload(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	// The header decides 400/415 before any of the body is read.
	if _, err := ImageMediaType(c.GetHeader("Content-Type")); err != nil {
		h.handleError(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.config.MaxUploadBytes)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.handleError(c, apperrors.PayloadTooLarge("Uploaded file is too large."))
			return
		}
		h.handleError(c, apperrors.BadRequest("Failed to read uploaded file."))
		return
	}

	result, err := h.service.Upload(c.Request.Context(), sess, UploadRequest{
		Filename:    c.Query("filename"),
		ContentType: c.GetHeader("Content-Type"),
		Body:        body,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Delete removes an image.
//
//	@Summary		Delete image
//	@Tags			Images
//	@Security		BearerAuth
//	@Param			filename	query	string	true	"Object name"
//	@Success		204
//	@Failure		400	{object}	apperrors.ErrorResponse	"Missing filename"
//	@Failure		401	{object}	apperrors.ErrorResponse	"Unauthorized"
//	@Failure		500	{object}	apperrors.ErrorResponse	"Storage failure"
//	@Router			/images/delete [delete]
func (h *Handler) Delete(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), sess, c.Query("filename")); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) session(c *gin.Context) (*session.Session, bool) {
	sess := session.FromContext(c.Request.Context())
	if sess == nil {
		h.handleError(c, apperrors.Unauthorized("Unauthorized"))
		return nil, false
	}
	return sess, true
}

// handleError writes err as a {message} body.
func (h *Handler) handleError(c *gin.Context, err error) {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		c.JSON(http.StatusInternalServerError, apperrors.ErrorResponse{Message: opErr.Message})
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.StatusCode, appErr.ToResponse())
		return
	}

	c.JSON(apperrors.GetStatusCode(err), apperrors.ErrorResponse{Message: "Internal server error."})
}
