package core

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func registerAuditRoutes(api *gin.RouterGroup, app *App) {
	api.GET("/admin-actions", func(c *gin.Context) {
		entries, err := app.Audit.Query(c.Request.Context(), strings.TrimSpace(c.Query("username")))
		if err != nil {
			respondStoreError(c, app, err, "admin actions")
			return
		}
		c.JSON(http.StatusOK, gin.H{"actions": entries})
	})

	api.GET("/admin-actions/usernames", func(c *gin.Context) {
		names, err := app.Audit.ListDistinctActors(c.Request.Context())
		if err != nil {
			respondStoreError(c, app, err, "admin actions")
			return
		}
		c.JSON(http.StatusOK, gin.H{"usernames": names})
	})

	api.POST("/admin-actions", func(c *gin.Context) {
		var req struct {
			Action  string `json:"action"`
			Details string `json:"details"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		if strings.TrimSpace(req.Action) == "" {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "action is required")
			return
		}
		entry, err := app.Audit.Append(c.Request.Context(), actorOf(c), req.Action, req.Details, OriginAddress(c.Request))
		if err != nil {
			app.Instruments.auditFailure()
			respondStoreError(c, app, err, "admin action")
			return
		}
		c.JSON(http.StatusCreated, entry)
	})
}

func registerReportRoutes(api *gin.RouterGroup, app *App) {
	repo := app.Stores.Reports

	api.POST("/reports", func(c *gin.Context) {
		ctx := c.Request.Context()
		actor := actorOf(c)
		r, err := repo.Create(ctx, Report{ID: NewRecordID(), RequestedBy: actor, Status: ReportPending})
		if err != nil {
			respondStoreError(c, app, err, "report")
			return
		}
		if err := app.Queue.Enqueue(ctx, r.ID); err != nil {
			entry := app.Log.WithField("report", r.ID)
			entry.WithError(err).Error("report enqueue failed")
			if delErr := repo.Delete(ctx, r.ID); delErr != nil {
				entry.WithError(delErr).Error("remove unqueued report failed")
			}
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to enqueue")
			return
		}
		app.Instruments.reportEnqueued()
		app.Audit.Record(ctx, actor, ActionRequestedReport, "Report "+r.ID, OriginAddress(c.Request))
		c.JSON(http.StatusAccepted, r)
	})

	api.GET("/reports", func(c *gin.Context) {
		items, err := repo.List(c.Request.Context())
		if err != nil {
			respondStoreError(c, app, err, "reports")
			return
		}
		c.JSON(http.StatusOK, items)
	})

	api.GET("/reports/:id", func(c *gin.Context) {
		r, err := repo.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondStoreError(c, app, err, "report")
			return
		}
		c.JSON(http.StatusOK, r)
	})
}

// serveReportPage streams a finished report file; unfinished reports are 404.
func serveReportPage(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := app.Stores.Reports.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				c.String(http.StatusNotFound, "report not found")
				return
			}
			app.Log.WithError(err).Error("load report failed")
			c.String(http.StatusInternalServerError, "internal error")
			return
		}
		if r.Status != ReportSucceeded || r.Path == "" {
			c.String(http.StatusNotFound, "report is not ready")
			return
		}
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.File(r.Path)
	}
}

func registerAdminRoutes(api *gin.RouterGroup, app *App) {
	admin := api.Group("/admin")
	admin.Use(AdminOnly())

	admin.POST("/clear-database", func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := app.Stores.Wiper.WipeAll(ctx); err != nil {
			app.Log.WithError(err).Error("clear database failed")
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to clear database")
			return
		}
		app.Audit.Record(ctx, actorOf(c), ActionClearedDatabase, "", OriginAddress(c.Request))
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	admin.GET("/queue", func(c *gin.Context) {
		qm, err := app.Monitor.Queue(c.Request.Context())
		if err != nil {
			app.Log.WithError(err).Error("queue metrics failed")
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load queue metrics")
			return
		}
		c.JSON(http.StatusOK, qm)
	})

	admin.GET("/workers", func(c *gin.Context) {
		workers, err := app.Monitor.Workers(c.Request.Context())
		if err != nil {
			app.Log.WithError(err).Error("worker metrics failed")
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load workers")
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": workers})
	})

	admin.GET("/workers/:id", func(c *gin.Context) {
		hb, err := app.Monitor.WorkerByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, redis.Nil) {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "worker not found")
				return
			}
			app.Log.WithError(err).Error("worker metrics failed")
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load worker")
			return
		}
		c.JSON(http.StatusOK, hb)
	})

	admin.GET("/system/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, CollectSystemStatus(c.Request.Context(), app.Monitor, app.Sessions, app.StartedAt))
	})
}
