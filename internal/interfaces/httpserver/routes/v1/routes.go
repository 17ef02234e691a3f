package v1

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/media-ingest/internal/interfaces/httpserver/handlers"
)

// Routes encapsulates versioned route registration.
type Routes struct {
	handlers *handlers.Provider
}

func NewRoutes(provider *handlers.Provider) *Routes {
	return &Routes{handlers: provider}
}

// Register attaches all v1 routes under /v1 prefix.
func (r *Routes) Register(router gin.IRouter) {
	group := router.Group("/v1/media")
	group.POST("/upload-credentials", r.handlers.Media.IssueUploadCredential)
	group.POST("/upload", r.handlers.Media.Upload)
	group.POST("/finalize", r.handlers.Media.Finalize)
	group.GET("/:id", r.handlers.Media.Get)
	group.DELETE("/:id", r.handlers.Media.Delete)
	group.PATCH("/:id/moderation", r.handlers.Media.Moderate)
	group.POST("/:id/downloads", r.handlers.Media.RecordDownload)
}
