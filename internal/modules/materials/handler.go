package materials

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"learnhub/internal/authz"
	"learnhub/internal/domain"
	"learnhub/internal/middleware"
	"learnhub/internal/pkg/response"
)

const (
	OpUpload       = "materials.upload"
	OpList         = "materials.list"
	OpListAssigned = "materials.list_assigned"
	OpDelete       = "materials.delete"
	OpAssign       = "materials.assign"

	multipartOverhead = 1 << 20
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type AssignRequest struct {
	StudentIDs []int64 `json:"student_ids" binding:"required,min=1"`
}

// RegisterRoutes expects protected to run JWTAuth already.
func (h *Handler) RegisterRoutes(protected *gin.RouterGroup, policy authz.Policy) {
	g := protected.Group("/materials")
	{
		g.POST("", middleware.RequirePolicy(policy, OpUpload), h.Upload)
		g.GET("", middleware.RequirePolicy(policy, OpList), h.List)
		g.GET("/assigned", middleware.RequirePolicy(policy, OpListAssigned), h.ListAssigned)
		g.GET("/:id", h.Get)
		g.GET("/:id/download", h.Download)
		g.DELETE("/:id", middleware.RequirePolicy(policy, OpDelete), h.Delete)
		g.POST("/:id/assign", middleware.RequirePolicy(policy, OpAssign), h.Assign)
	}
}

// Upload godoc
// @Summary		Upload a learning material
// @Tags		Materials
// @Accept		multipart/form-data
// @Security	BearerAuth
// @Param		file		formData	file	true	"File"
// @Param		title		formData	string	true	"Title"
// @Param		type		formData	string	true	"pdf, video, image or notes"
// @Param		description	formData	string	false	"Description"
// @Param		subject		formData	string	false	"Subject"
// @Param		topic		formData	string	false	"Topic"
// @Param		course_id	formData	string	false	"Course"
// @Param		assign_to	formData	string	false	"Comma separated student ids"
// @Success		201	{object}	domain.Material
// @Failure		400,403,413	{object}	map[string]interface{}
// @Router		/materials [POST]
func (h *Handler) Upload(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.service.MaxFileSize()+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", ErrFileTooLarge.Error())
			return
		}
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "No file provided")
		return
	}

	assignTo, err := parseIDList(c.PostFormArray("assign_to"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "assign_to must contain user ids")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer file.Close()

	m, err := h.service.Upload(c.Request.Context(), userID, UploadInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Type:        c.PostForm("type"),
		Subject:     c.PostForm("subject"),
		Topic:       c.PostForm("topic"),
		CourseID:    c.PostForm("course_id"),
		AssignTo:    assignTo,
		FileName:    fileHeader.Filename,
		Size:        fileHeader.Size,
		File:        file,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, m)
}

// List godoc
// @Summary		List materials
// @Tags		Materials
// @Security	BearerAuth
// @Param		type		query	string	false	"Material type"
// @Param		subject		query	string	false	"Subject"
// @Param		course_id	query	string	false	"Course"
// @Param		search		query	string	false	"Text in title or topic"
// @Success		200	{array}	domain.Material
// @Router		/materials [GET]
func (h *Handler) List(c *gin.Context) {
	filter := domain.MaterialFilter{
		Subject:  c.Query("subject"),
		CourseID: c.Query("course_id"),
		Search:   c.Query("search"),
	}
	if t := c.Query("type"); t != "" {
		mt, err := domain.ParseMaterialType(t)
		if err != nil {
			h.writeError(c, err)
			return
		}
		filter.Type = mt
	}

	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// ListAssigned godoc
// @Summary		Materials assigned to the calling student
// @Tags		Materials
// @Security	BearerAuth
// @Success		200	{array}	domain.Material
// @Router		/materials/assigned [GET]
func (h *Handler) ListAssigned(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	items, err := h.service.ListAssigned(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Get godoc
// @Summary		Get a material
// @Tags		Materials
// @Security	BearerAuth
// @Param		id	path	string	true	"Material ID"
// @Success		200	{object}	domain.Material
// @Failure		404	{object}	map[string]interface{}
// @Router		/materials/{id} [GET]
func (h *Handler) Get(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	m, err := h.service.Get(c.Request.Context(), userID, middleware.Roles(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, m)
}

// Download godoc
// @Summary		Download a material's file
// @Tags		Materials
// @Security	BearerAuth
// @Param		id	path	string	true	"Material ID"
// @Produce		octet-stream
// @Success		200
// @Failure		404	{object}	map[string]interface{}
// @Router		/materials/{id}/download [GET]
func (h *Handler) Download(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	m, rc, err := h.service.Download(c.Request.Context(), userID, middleware.Roles(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer rc.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": m.OriginalName})
	c.DataFromReader(http.StatusOK, m.Size, m.MimeType, rc, map[string]string{
		"Content-Disposition": disposition,
	})
}

// Delete godoc
// @Summary		Delete a material
// @Description	Admins delete any material; tutors only their own uploads.
// @Tags		Materials
// @Security	BearerAuth
// @Param		id	path	string	true	"Material ID"
// @Success		200	{object}	map[string]interface{}
// @Failure		403,404	{object}	map[string]interface{}
// @Router		/materials/{id} [DELETE]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	if err := h.service.Delete(c.Request.Context(), userID, middleware.Roles(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Material deleted"})
}

// Assign godoc
// @Summary		Assign a material to students
// @Tags		Materials
// @Security	BearerAuth
// @Param		id		path	string			true	"Material ID"
// @Param		request	body	AssignRequest	true	"student_ids"
// @Success		200	{object}	domain.Material
// @Failure		400,403,404	{object}	map[string]interface{}
// @Router		/materials/{id}/assign [POST]
func (h *Handler) Assign(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "student_ids is required")
		return
	}

	userID, _ := middleware.UserID(c)
	m, err := h.service.Assign(c.Request.Context(), userID, middleware.Roles(c), c.Param("id"), req.StudentIDs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, m)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrMaterialNotFound):
		response.Error(c, http.StatusNotFound, "MATERIAL_NOT_FOUND", "Material not found")
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error())
	case errors.Is(err, ErrEmptyFile), errors.Is(err, ErrInvalidMimeType), errors.Is(err, ErrNotAStudent),
		errors.Is(err, domain.ErrInvalidTitle), errors.Is(err, domain.ErrInvalidMaterialType):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// parseIDList accepts repeated values and comma separated lists.
func parseIDList(values []string) ([]int64, error) {
	var out []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, errors.New("invalid id")
			}
			out = append(out, id)
		}
	}
	return out, nil
}
