// Package server assembles the HTTP router of the directory service.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hpcadmin/server/internal/directory"
	"github.com/hpcadmin/server/internal/export"
	"github.com/hpcadmin/server/internal/groups"
	"github.com/hpcadmin/server/internal/middleware"
	"github.com/hpcadmin/server/internal/pirgs"
	"github.com/hpcadmin/server/internal/users"
	"github.com/hpcadmin/server/pkg/response"
)

// NewRouter returns the gin engine with middleware and every route mounted.
func NewRouter(svc *directory.Service, logger *zap.Logger, corsOrigins string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(corsOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	users.NewHandler(svc).Register(router)
	pirgs.NewHandler(svc).Register(router)
	groups.NewHandler(svc).Register(router)
	export.NewHandler(svc).Register(router)

	router.NoRoute(func(c *gin.Context) { response.NotFound(c, "route not found") })
	return router
}
