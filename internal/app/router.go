package app

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub/internal/authz"
	"learnhub/internal/middleware"
	"learnhub/internal/modules/auth"
	"learnhub/internal/modules/materials"
	"learnhub/internal/modules/users"
	"learnhub/internal/pkg/logging"
)

type Deps struct {
	Logger      logging.Logger
	Verifier    middleware.TokenVerifier
	Policy      authz.Policy
	CORSOrigins []string

	Auth      *auth.Handler
	Users     *users.Handler
	Materials *materials.Handler
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorLogger(d.Logger))
	r.Use(middleware.CORS(d.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		d.Auth.RegisterPublicRoutes(v1)

		protected := v1.Group("/")
		protected.Use(middleware.JWTAuth(d.Verifier))
		{
			d.Auth.RegisterProtectedRoutes(protected)
			d.Users.RegisterRoutes(protected, d.Policy)
			d.Materials.RegisterRoutes(protected, d.Policy)
		}
	}

	return r
}
