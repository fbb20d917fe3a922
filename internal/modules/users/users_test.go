package users

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnhub/internal/authz"
	"learnhub/internal/database"
	"learnhub/internal/domain"
	"learnhub/internal/middleware"
	"learnhub/internal/pkg/jwt"
	"learnhub/internal/pkg/logging"
	"learnhub/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(t *testing.T) (*Service, *repository.UserRepository) {
	t.Helper()
	dsn := fmt.Sprintf("file:users_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Connect(dsn, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db, repository.Models()...))

	repo := repository.NewUserRepository(db)
	return NewService(repo, logging.Discard()), repo
}

func seed(t *testing.T, repo *repository.UserRepository, email string, roles ...domain.Role) *domain.User {
	t.Helper()
	u, err := domain.NewUser(domain.NewUserParams{Email: email, Name: "Someone", PasswordHash: "$2a$04$x", Roles: roles})
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestService_UpdateRoles(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)
	u := seed(t, repo, "student@school.org", domain.RoleStudent)

	updated, err := svc.UpdateRoles(ctx, 1, u.ID, []string{"tutor", "TUTOR", "parent"})
	require.NoError(t, err)
	assert.Equal(t, domain.Roles{domain.RoleTutor, domain.RoleParent}, updated.Roles)

	stored, err := svc.Profile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Roles{domain.RoleTutor, domain.RoleParent}, stored.Roles)

	_, err = svc.UpdateRoles(ctx, 1, u.ID, nil)
	assert.ErrorIs(t, err, domain.ErrNoRoles)
	_, err = svc.UpdateRoles(ctx, 1, u.ID, []string{"wizard"})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
	_, err = svc.UpdateRoles(ctx, 1, 9999, []string{"admin"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_ListPaginates(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)
	for i := 0; i < 5; i++ {
		seed(t, repo, fmt.Sprintf("u%d@school.org", i))
	}

	page, total, err := svc.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, "u2@school.org", page[0].Email)

	page, _, err = svc.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, page, 5)
}

func TestHandler_Policy(t *testing.T) {
	svc, repo := setup(t)
	target := seed(t, repo, "student@school.org", domain.RoleStudent)
	tokens := jwt.New("secret", time.Hour, "")

	policy := authz.Policy{
		OpList:        {domain.RoleSuperAdmin, domain.RoleAdmin},
		OpUpdateRoles: {domain.RoleSuperAdmin},
	}
	r := gin.New()
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(tokens))
	NewHandler(svc).RegisterRoutes(protected, policy)

	call := func(method, path string, body any, roles ...string) *httptest.ResponseRecorder {
		tok, err := tokens.Issue(target.ID, target.Email, roles)
		require.NoError(t, err)
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Authorization", "Bearer "+tok)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusForbidden, call(http.MethodGet, "/api/v1/users", nil, "student").Code)
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/api/v1/users", nil, "admin").Code)
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/api/v1/users/profile", nil, "student").Code)

	path := fmt.Sprintf("/api/v1/users/%d/roles", target.ID)
	assert.Equal(t, http.StatusForbidden, call(http.MethodPatch, path, gin.H{"roles": []string{"admin"}}, "admin").Code)
	assert.Equal(t, http.StatusBadRequest, call(http.MethodPatch, path, gin.H{"roles": []string{}}, "super_admin").Code)
	assert.Equal(t, http.StatusBadRequest, call(http.MethodPatch, path, gin.H{"roles": []string{"wizard"}}, "super_admin").Code)
	assert.Equal(t, http.StatusNotFound, call(http.MethodPatch, "/api/v1/users/9999/roles", gin.H{"roles": []string{"admin"}}, "super_admin").Code)

	w := call(http.MethodPatch, path, gin.H{"roles": []string{"tutor"}}, "super_admin")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"roles":["tutor"]`)
}
