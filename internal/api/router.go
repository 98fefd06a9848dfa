package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts all document and search routes under /api/v1,
// protected by the JWT middleware.
func RegisterRoutes(router *gin.Engine, a *API, jwtSecret string) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(jwtSecret))
	{
		documents := v1.Group("/documents")
		{
			documents.POST("", a.UploadDocumentHandler)
			documents.GET("", a.ListDocumentsHandler)
			documents.GET("/:id/status", a.GetStatusHandler)
			documents.DELETE("/:id", a.DeleteDocumentHandler)
		}

		v1.GET("/jobs", a.ListJobsHandler)
		v1.POST("/search", a.SearchHandler)
	}
}
