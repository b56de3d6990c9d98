package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/album/internal/module/session"
	apperrors "github.com/uniedit/album/internal/shared/errors"
	"github.com/uniedit/album/internal/utils/middleware"
	"github.com/uniedit/album/internal/utils/requestctx"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Handler handles HTTP requests for authentication.
type Handler struct {
	service *Service
	cookie  CookieConfig
}

// NewHandler creates a new auth handler.
func NewHandler(service *Service, cookie CookieConfig) *Handler {
	if cookie.Name == "" {
		cookie.Name = "album_session"
	}
	return &Handler{service: service, cookie: cookie}
}

// RegisterRoutes registers auth routes.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	auth := r.Group("/auth")
	{
		auth.GET("/login", h.InitiateLogin)
		auth.GET("/callback", h.Callback)
		auth.POST("/logout", h.RequireSession(), h.Logout)
	}
}

// --- Auth Endpoints ---

// InitiateLogin starts the OAuth login flow.
//
//	@Summary		Start login
//	@Description	Returns the hosted UI authorization URL and the state to echo back
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	LoginResponse
//	@Failure		500	{object}	apperrors.ErrorResponse	"Internal server error"
//	@Router			/auth/login [get]
func (h *Handler) InitiateLogin(c *gin.Context) {
	resp, err := h.service.InitiateLogin(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Callback completes the OAuth login flow.
//
//	@Summary		Complete login
//	@Description	Exchanges the authorization code and issues a session token and cookie
//	@Tags			Auth
//	@Produce		json
//	@Param			code	query		string	true	"Authorization code"
//	@Param			state	query		string	true	"State from the login response"
//	@Success		200		{object}	LoginResult
//	@Failure		400		{object}	apperrors.ErrorResponse	"Invalid state or code"
//	@Failure		401		{object}	apperrors.ErrorResponse	"Unauthorized"
//	@Router			/auth/callback [get]
func (h *Handler) Callback(c *gin.Context) {
	result, err := h.service.CompleteLogin(c.Request.Context(), c.Query("code"), c.Query("state"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, result.Token, int(h.service.TokenExpiry().Seconds()), "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, result)
}

// Logout destroys the current session.
//
//	@Summary	Sign out
//	@Tags		Auth
//	@Security	BearerAuth
//	@Success	204
//	@Failure	401	{object}	apperrors.ErrorResponse	"Unauthorized"
//	@Router		/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	sessionID := c.GetString(middleware.SessionIDKey)
	if err := h.service.Logout(c.Request.Context(), sessionID); err != nil {
		h.handleError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	c.Status(http.StatusNoContent)
}

// --- Middleware ---

// RequireSession authenticates the request by bearer token or session
// cookie and attaches the session to the request context.
func (h *Handler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := h.sessionToken(c)
		if token == "" {
			h.unauthorized(c)
			return
		}

		sess, err := h.service.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.unauthorized(c)
			return
		}

		c.Set(middleware.SessionIDKey, sess.ID)
		ctx := requestctx.WithSessionID(c.Request.Context(), sess.ID)
		c.Request = c.Request.WithContext(session.NewContext(ctx, sess))
		c.Next()
	}
}

func (h *Handler) sessionToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	token, err := c.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}
	return token
}

func (h *Handler) unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, apperrors.ErrorResponse{Message: "Unauthorized"})
}

// --- Helper Methods ---

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidOAuthCode):
		c.JSON(http.StatusBadRequest, apperrors.ErrorResponse{Message: "invalid oauth code"})
	case errors.Is(err, ErrInvalidOAuthState):
		c.JSON(http.StatusBadRequest, apperrors.ErrorResponse{Message: "invalid oauth state"})
	case errors.Is(err, ErrOAuthFailed), errors.Is(err, ErrMissingIdentityToken):
		c.JSON(http.StatusUnauthorized, apperrors.ErrorResponse{Message: "oauth authentication failed"})
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrInvalidTokenClaims):
		c.JSON(http.StatusUnauthorized, apperrors.ErrorResponse{Message: "Unauthorized"})
	default:
		c.JSON(http.StatusInternalServerError, apperrors.ErrorResponse{Message: "Internal server error."})
	}
}
