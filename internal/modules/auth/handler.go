package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"learnhub/internal/domain"
	"learnhub/internal/middleware"
	"learnhub/internal/modules/refreshtoken"
	"learnhub/internal/pkg/logging"
	"learnhub/internal/pkg/response"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 600 // seconds
	oauthCookiePath  = "/api/v1/auth/google"
)

// Handler manages all HTTP interactions for authentication
type Handler struct {
	service       *Service
	google        *GoogleProvider
	stateSecret   string
	secureCookies bool
	log           logging.Logger
}

type HandlerConfig struct {
	Google        *GoogleProvider // nil disables Google login
	StateSecret   string
	SecureCookies bool
	Logger        logging.Logger
}

func NewHandler(service *Service, cfg HandlerConfig) *Handler {
	h := &Handler{
		service:       service,
		google:        cfg.Google,
		stateSecret:   cfg.StateSecret,
		secureCookies: cfg.SecureCookies,
		log:           cfg.Logger,
	}
	if h.log == nil {
		h.log = logging.Discard()
	}
	return h
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/google", h.GoogleLogin)
		authGroup.GET("/google/redirect", h.GoogleRedirect)
	}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	authGroup := protected.Group("/auth")
	{
		authGroup.POST("/logout-all-devices", h.LogoutAll)
		authGroup.GET("/sessions", h.ListSessions)
		authGroup.DELETE("/sessions/:id", h.RevokeSession)
	}
}

// Register godoc
// @Summary		Register a local account
// @Description	Creates an account with email and password and starts a session.
// @Tags		Auth
// @Param		request	body	RegisterRequest	true	"name, email, password"
// @Success		201	{object}		map[string]interface{} "Account created, tokens returned"
// @Failure		400	{object}		map[string]interface{} "Validation error"
// @Failure		409	{object}		map[string]interface{} "Email already registered"
// @Router		/auth/register [POST]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.service.Register(c.Request.Context(), RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	}, clientMetadata(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, newAuthResponse(res))
}

// Login godoc
// @Summary		Log in with email and password
// @Tags		Auth
// @Param		request	body	LoginRequest	true	"email, password"
// @Success		200	{object}		map[string]interface{} "Tokens returned"
// @Failure		400	{object}		map[string]interface{} "Validation error"
// @Failure		401	{object}		map[string]interface{} "Email or password is incorrect"
// @Router		/auth/login [POST]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.service.Login(c.Request.Context(), LoginInput{Email: req.Email, Password: req.Password}, clientMetadata(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, newAuthResponse(res))
}

// Refresh godoc
// @Summary		Rotate a refresh token
// @Description	Exchanges a refresh token for a new pair. Each refresh token works once; presenting a used one ends every session of the account.
// @Tags		Auth
// @Param		request	body	RefreshRequest	true	"refresh_token"
// @Success		200	{object}		map[string]interface{} "New tokens"
// @Failure		401	{object}		map[string]interface{} "Invalid or expired refresh token"
// @Router		/auth/refresh [POST]
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.service.Refresh(c.Request.Context(), req.RefreshToken, clientMetadata(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, newAuthResponse(res))
}

// Logout godoc
// @Summary		Log out the current device
// @Tags		Auth
// @Param		request	body	RefreshRequest	true	"refresh_token"
// @Success		200	{object}		map[string]interface{} "Session revoked"
// @Failure		401	{object}		map[string]interface{} "Invalid or expired refresh token"
// @Router		/auth/logout [POST]
func (h *Handler) Logout(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	msg, err := h.service.Logout(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": msg})
}

// LogoutAll godoc
// @Summary		Log out every device
// @Tags		Auth
// @Security	BearerAuth
// @Success		200	{object}		map[string]interface{} "All sessions revoked"
// @Failure		401	{object}		map[string]interface{} "Unauthorized"
// @Router		/auth/logout-all-devices [POST]
func (h *Handler) LogoutAll(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	if err := h.service.LogoutAll(c.Request.Context(), userID); err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Logged out from all devices"})
}

// ListSessions godoc
// @Summary		List active sessions
// @Description	Unrevoked sessions of the caller, newest first. Sessions past their expiry carry expired=true.
// @Tags		Auth
// @Security	BearerAuth
// @Success		200	{object}		map[string]interface{} "Sessions"
// @Router		/auth/sessions [GET]
func (h *Handler) ListSessions(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	sessions, err := h.service.ListSessions(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// RevokeSession godoc
// @Summary		Revoke one of the caller's sessions
// @Tags		Auth
// @Security	BearerAuth
// @Param		id	path	string	true	"Session ID"
// @Success		200	{object}		map[string]interface{} "Session revoked"
// @Router		/auth/sessions/{id} [DELETE]
func (h *Handler) RevokeSession(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	msg, err := h.service.RevokeSession(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": msg})
}

// GoogleLogin godoc
// @Summary		Start Google login
// @Tags		Auth
// @Success		302
// @Failure		404	{object}		map[string]interface{} "Google login is not configured"
// @Router		/auth/google [GET]
func (h *Handler) GoogleLogin(c *gin.Context) {
	if h.google == nil {
		response.Error(c, http.StatusNotFound, "OAUTH_DISABLED", "Google login is not configured")
		return
	}

	state, err := newRandomString(24)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, signState(state, h.stateSecret), oauthStateTTL, oauthCookiePath, "", h.secureCookies, true)
	c.Redirect(http.StatusFound, h.google.AuthCodeURL(state))
}

// GoogleRedirect godoc
// @Summary		Google login callback
// @Tags		Auth
// @Param		state	query	string	true	"OAuth state"
// @Param		code	query	string	true	"Authorization code"
// @Success		200	{object}		map[string]interface{} "Tokens returned"
// @Failure		400	{object}		map[string]interface{} "Invalid state"
// @Failure		403	{object}		map[string]interface{} "Email not verified"
// @Router		/auth/google/redirect [GET]
func (h *Handler) GoogleRedirect(c *gin.Context) {
	if h.google == nil {
		response.Error(c, http.StatusNotFound, "OAUTH_DISABLED", "Google login is not configured")
		return
	}

	cookie, _ := c.Cookie(oauthStateCookie)
	c.SetCookie(oauthStateCookie, "", -1, oauthCookiePath, "", h.secureCookies, true)

	state, ok := verifySignedState(cookie, h.stateSecret)
	if !ok || state != c.Query("state") {
		h.writeError(c, ErrInvalidOAuthState)
		return
	}

	code := c.Query("code")
	if code == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Missing authorization code")
		return
	}

	profile, err := h.google.Exchange(c.Request.Context(), code)
	if err != nil {
		h.log.Warn(c.Request.Context(), "google exchange failed", "error", err)
		response.Error(c, http.StatusBadGateway, "OAUTH_EXCHANGE_FAILED", "Google login failed")
		return
	}

	res, err := h.service.LoginWithGoogle(c.Request.Context(), *profile, clientMetadata(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, newAuthResponse(res))
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Email or password is incorrect")
	case errors.Is(err, ErrEmailAlreadyExists):
		response.Error(c, http.StatusConflict, "EMAIL_ALREADY_EXISTS", "Email already registered")
	case errors.Is(err, ErrEmailNotVerified):
		response.Error(c, http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Google account email is not verified")
	case errors.Is(err, ErrInvalidOAuthState):
		response.Error(c, http.StatusBadRequest, "INVALID_OAUTH_STATE", "Invalid or expired login attempt")
	case errors.Is(err, refreshtoken.ErrInvalidToken), errors.Is(err, refreshtoken.ErrUserNotFound):
		response.Error(c, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Invalid or expired refresh token")
	case errors.Is(err, domain.ErrInvalidEmail), errors.Is(err, domain.ErrInvalidName):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, refreshtoken.ErrStoreUnavailable):
		_ = c.Error(err)
		response.Error(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// clientMetadata records the caller's user agent and address. The first
// X-Forwarded-For hop wins over the socket address.
func clientMetadata(c *gin.Context) refreshtoken.Metadata {
	ip := c.ClientIP()
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			ip = first
		}
	}
	return refreshtoken.Metadata{UserAgent: c.Request.UserAgent(), IP: ip}
}
