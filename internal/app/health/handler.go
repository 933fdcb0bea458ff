package health

import (
	"net/http"

	"coderoom/internal/utils"

	"github.com/gin-gonic/gin"
)

const LivenessText = "Backend server is alive and running."

type Handler interface {
	Check(c *gin.Context)
	Alive(c *gin.Context)
}

type handler struct {
	service Service
}

func NewHandler(service Service) Handler {
	return &handler{service: service}
}

func (h *handler) Check(c *gin.Context) {
	status := h.service.Check(c.Request.Context())
	if status.Status == utils.StatusHealthy {
		c.JSON(http.StatusOK, status)
	} else {
		c.JSON(http.StatusServiceUnavailable, status)
	}
}

func (h *handler) Alive(c *gin.Context) {
	c.String(http.StatusOK, LivenessText)
}
