package users

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"learnhub/internal/authz"
	"learnhub/internal/domain"
	"learnhub/internal/middleware"
	"learnhub/internal/pkg/response"
)

// Policy operations served by this handler.
const (
	OpList        = "users.list"
	OpUpdateRoles = "users.update_roles"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes expects protected to run JWTAuth already.
func (h *Handler) RegisterRoutes(protected *gin.RouterGroup, policy authz.Policy) {
	userGroup := protected.Group("/users")
	{
		userGroup.GET("", middleware.RequirePolicy(policy, OpList), h.List)
		userGroup.GET("/profile", h.Profile)
		userGroup.PATCH("/:id/roles", middleware.RequirePolicy(policy, OpUpdateRoles), h.UpdateRoles)
	}
}

// List godoc
// @Summary		List users
// @Tags		Users
// @Security	BearerAuth
// @Param		page	query	int		false	"Page number"	default(1)
// @Param		limit	query	int		false	"Page size"	default(20)
// @Success		200	{object}	UserListResponse
// @Failure		403	{object}		map[string]interface{} "Access denied"
// @Router		/users [GET]
func (h *Handler) List(c *gin.Context) {
	page := parseIntDefault(c.Query("page"), 1)
	limit := parseIntDefault(c.Query("limit"), 20)
	if limit > maxPageSize {
		limit = maxPageSize
	}

	users, total, err := h.service.List(c.Request.Context(), page, limit)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users")
		return
	}

	out := make([]domain.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	response.Success(c, http.StatusOK, UserListResponse{Users: out, Total: total, Page: page, Limit: limit})
}

// Profile godoc
// @Summary		Current user's profile
// @Tags		Users
// @Security	BearerAuth
// @Success		200	{object}	domain.PublicUser
// @Failure		404	{object}		map[string]interface{} "User not found"
// @Router		/users/profile [GET]
func (h *Handler) Profile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	u, err := h.service.Profile(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, u.Public())
}

// UpdateRoles godoc
// @Summary		Replace a user's roles
// @Description	Takes effect for access tokens minted on the user's next login or refresh.
// @Tags		Users
// @Security	BearerAuth
// @Param		id		path	int					true	"User ID"
// @Param		request	body	UpdateRolesRequest	true	"roles"
// @Success		200	{object}	domain.PublicUser
// @Failure		400	{object}		map[string]interface{} "Invalid roles"
// @Failure		404	{object}		map[string]interface{} "User not found"
// @Router		/users/{id}/roles [PATCH]
func (h *Handler) UpdateRoles(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid user id")
		return
	}

	var req UpdateRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "At least one role is required")
		return
	}

	actorID, _ := middleware.UserID(c)
	u, err := h.service.UpdateRoles(c.Request.Context(), actorID, id, req.Roles)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, u.Public())
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		response.Error(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, domain.ErrInvalidRole), errors.Is(err, domain.ErrNoRoles):
		response.Error(c, http.StatusBadRequest, "INVALID_ROLE", err.Error())
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func parseIntDefault(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
