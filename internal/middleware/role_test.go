package middleware

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnhub/internal/authz"
	"learnhub/internal/domain"
	"learnhub/internal/pkg/jwt"
)

// countingReader reports how much of the request body was consumed.
type countingReader struct {
	r    io.Reader
	read int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += n
	return n, err
}

func newRoleRouter(t *testing.T, svc *jwt.Service, mw gin.HandlerFunc) *gin.Engine {
	t.Helper()
	router := gin.New()
	router.Use(JWTAuth(svc))
	router.POST("/upload", mw, func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return router
}

func bearer(t *testing.T, svc *jwt.Service, roles ...string) string {
	t.Helper()
	tok, err := svc.Issue(7, "user@school.org", roles)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestRequireRoles_Allows(t *testing.T) {
	svc := jwt.New("secret", time.Hour, "")
	router := newRoleRouter(t, svc, RequireRoles(domain.RoleAdmin))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Header.Set("Authorization", bearer(t, svc, "student", "admin"))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRequireRoles_DeniesAndDrainsMultipart(t *testing.T) {
	svc := jwt.New("secret", time.Hour, "")
	router := newRoleRouter(t, svc, RequireRoles(domain.RoleAdmin, domain.RoleTutor))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.pdf")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("%PDF-1.4 "), 64*1024))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	total := buf.Len()

	body := &countingReader{r: &buf}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", bearer(t, svc, "student"))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")
	assert.Contains(t, w.Body.String(), accessDeniedMessage)
	assert.Equal(t, total, body.read, "denied uploads are drained before responding")
}

func TestRequireRoles_EmptyAllowsAnyone(t *testing.T) {
	router := gin.New()
	router.GET("/open", RequireRoles(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRoles_Unauthenticated(t *testing.T) {
	router := gin.New()
	router.POST("/upload", RequireRoles(domain.RoleAdmin), func(c *gin.Context) {
		t.Fatal("handler must not be reached")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("payload")))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequirePolicy(t *testing.T) {
	svc := jwt.New("secret", time.Hour, "")
	policy := authz.Policy{"users.update_roles": {domain.RoleSuperAdmin}}
	router := newRoleRouter(t, svc, RequirePolicy(policy, "users.update_roles"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Header.Set("Authorization", bearer(t, svc, "admin"))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Header.Set("Authorization", bearer(t, svc, "super_admin"))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}
