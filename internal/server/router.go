package server

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"securedrive/internal/auth"
	"securedrive/internal/config"
	"securedrive/internal/logger"
	"securedrive/internal/metrics"
	"securedrive/internal/object"
	"securedrive/internal/presigned"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config           config.Config
	Logger           *zap.Logger
	DB               *pgxpool.Pool
	ObjectStore      *minio.Client
	AuthService      *auth.Service
	ObjectService    *object.Service
	PresignedService *presigned.Service
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	if deps.Logger != nil {
		router.Use(logger.RequestLogger(deps.Logger))
	}

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/v1")
	if deps.AuthService != nil {
		auth.RegisterRoutes(api, deps.AuthService)

		protected := api.Group("/")
		protected.Use(auth.AuthMiddleware(deps.AuthService))
		auth.RegisterProtectedRoutes(protected, deps.AuthService)

		if deps.ObjectService != nil {
			object.RegisterRoutes(protected, deps.ObjectService)

			if deps.PresignedService != nil {
				presigned.RegisterRoutes(protected, deps.ObjectService, deps.PresignedService)
			}
		}
	}

	return router
}
