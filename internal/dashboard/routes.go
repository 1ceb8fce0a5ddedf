package dashboard

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mveloso/campo/internal/models"
	"github.com/mveloso/campo/internal/progress"
	"github.com/mveloso/campo/internal/sheet"
	"github.com/mveloso/campo/internal/view"
	"gorm.io/gorm"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	api := router.Group("/api")

	api.POST("/sync", handleSync(opts))
	api.GET("/progress", handleProgress(opts))
	api.POST("/progress/reset", handleProgressReset(opts))

	api.GET("/os", handleOSList(opts.DB))
	api.GET("/os/:id", handleOSDetail(opts.DB))

	api.GET("/notifications", handleNotificationList(opts.DB))
	api.POST("/notifications/:id/read", handleNotificationFlag(opts.DB, "is_read"))
	api.POST("/notifications/:id/archive", handleNotificationFlag(opts.DB, "archived"))
}

// handleSync decodes the four sheets from the request body and runs the
// reconciliation in the background; callers follow along via
// /api/progress. A run already in flight answers 409.
func handleSync(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sheets sheet.Sheets
		if err := c.ShouldBindJSON(&sheets); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sheets payload"})
			return
		}
		if snap := opts.Tracker.Snapshot(); snap.Status == progress.Running {
			c.JSON(http.StatusConflict, gin.H{"error": "importação já em andamento"})
			return
		}
		if c.Query("wait") == "true" {
			res, err := opts.Engine.Reconcile(context.Background(), sheets)
			if err != nil {
				c.JSON(http.StatusInternalServerError, res)
				return
			}
			c.JSON(http.StatusOK, res)
			return
		}
		go func() {
			// Result and errors surface through the tracker; the HTTP
			// request only starts the run.
			opts.Engine.Reconcile(context.Background(), sheets) //nolint:errcheck
		}()
		c.JSON(http.StatusAccepted, gin.H{"started": true, "totalRows": sheets.TotalRows()})
	}
}

func handleProgress(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, opts.Tracker.Snapshot())
	}
}

func handleProgressReset(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts.Tracker.Reset()
		c.JSON(http.StatusOK, opts.Tracker.Snapshot())
	}
}

func handleOSList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := view.List(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load work orders"})
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

func handleOSDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		enriched, err := view.Get(db, c.Param("id"))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "work order not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load work order"})
			return
		}
		c.JSON(http.StatusOK, enriched)
	}
}

// handleNotificationList returns visible (non-archived) notifications,
// newest first, optionally filtered by crew.
func handleNotificationList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.Where("archived = ?", false).Order("created_at DESC")
		if crew := c.Query("crew"); crew != "" {
			q = q.Where("crew_id = ?", crew)
		}
		var notifications []models.Notification
		if err := q.Find(&notifications).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load notifications"})
			return
		}
		c.JSON(http.StatusOK, notifications)
	}
}

func handleNotificationFlag(db *gorm.DB, column string) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := db.Model(&models.Notification{}).
			Where("id = ?", c.Param("id")).
			Update(column, true)
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update notification"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": true})
	}
}
