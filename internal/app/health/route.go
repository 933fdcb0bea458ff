package health

import "github.com/gin-gonic/gin"

func RegisterRoutes(root gin.IRoutes, api gin.IRoutes, h Handler) {
	root.GET("/", h.Alive)
	api.GET("/health", h.Check)
}
