package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/github-data-explorer/internal/logger"
)

// SetupRoutes sets up the grid bridge routes
func SetupRoutes(handler *Handler, log logger.Logger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(RequestID())
	router.Use(Logger(log))

	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/state", handler.GetState)
		v1.GET("/stats", handler.GetUserStats)
		v1.POST("/collections/refresh", handler.RefreshCollections)
		v1.POST("/collection", handler.SelectCollection)

		filters := v1.Group("/filters")
		{
			filters.POST("/facet", handler.SetFacet)
			filters.DELETE("/facet/:name", handler.ClearFacet)
			filters.POST("/date-range", handler.SetDateRange)
		}

		page := v1.Group("/page")
		{
			page.POST("", handler.SetPage)
			page.POST("/next", handler.NextPage)
			page.POST("/prev", handler.PrevPage)
		}

		v1.POST("/search", handler.Search)

		grid := v1.Group("/grid")
		{
			grid.POST("/cell-clicked", handler.CellClicked)
			grid.POST("/row-drag-end", handler.RowDragEnd)
		}

		v1.GET("/rows/:index/detail", handler.GetRowDetail)
		v1.POST("/export", handler.Export)
	}

	return router
}
