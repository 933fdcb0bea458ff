package router

import (
	"coderoom/internal/app/health"
	"coderoom/internal/app/upload"
	"coderoom/internal/gateways/websocket"
	"coderoom/internal/metrics"
	"coderoom/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(allowedOrigins []string, logger *zap.Logger) *Router {
	engine := gin.New()
	engine.Use(middleware.CORSMiddleware(allowedOrigins))
	engine.Use(middleware.LoggerMiddleware(logger))
	engine.Use(gin.Recovery())
	return &Router{Engine: engine}
}

func (r *Router) RegisterHealthRoutes(handler health.Handler) {
	health.RegisterRoutes(r.Engine, r.Engine.Group("/api"), handler)
}

func (r *Router) RegisterWebSocketRoutes(handler *websocket.Handler) {
	websocket.RegisterRoutes(r.Engine, handler)
}

func (r *Router) RegisterMetricsRoutes() {
	metrics.RegisterRoutes(r.Engine)
}

func (r *Router) RegisterUploadRoutes(storage *upload.LocalStorage) {
	upload.RegisterRoutes(r.Engine, storage)
}
