package core

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// respondStoreError maps repository errors: ErrNotFound to 404, ErrAlreadyExists to 409, anything else to 500.
func respondStoreError(c *gin.Context, app *App, err error, what string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", what+" not found")
		return
	case errors.Is(err, ErrAlreadyExists):
		respondError(c, http.StatusConflict, "CONFLICT", what+" with this id already exists")
		return
	}
	app.Log.WithError(err).WithField("entity", what).Error("store operation failed")
	respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to access "+what)
}

func actorOf(c *gin.Context) string {
	id, _ := currentIdentity(c)
	return id.Username
}

func registerPropertyRoutes(api *gin.RouterGroup, app *App) {
	repo := app.Stores.Properties

	api.GET("/properties", func(c *gin.Context) {
		items, err := repo.List(c.Request.Context())
		if err != nil {
			respondStoreError(c, app, err, "objects")
			return
		}
		c.JSON(http.StatusOK, items)
	})

	api.GET("/properties/:id", func(c *gin.Context) {
		p, err := repo.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondStoreError(c, app, err, "object")
			return
		}
		c.JSON(http.StatusOK, p)
	})

	api.POST("/properties", func(c *gin.Context) {
		var p Property
		if err := c.ShouldBindJSON(&p); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		// The agency's own object number is kept; one is generated only when absent.
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			p.ID = NewRecordID()
		}
		p.Normalize()
		if err := p.Validate(); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		ctx := c.Request.Context()
		created, err := repo.Create(ctx, p)
		if err != nil {
			respondStoreError(c, app, err, "object")
			return
		}
		app.Audit.Record(ctx, actorOf(c), ActionCreatedProperty, propertyDetail(created), OriginAddress(c.Request))
		c.JSON(http.StatusCreated, created)
	})

	api.PUT("/properties/:id", func(c *gin.Context) {
		ctx := c.Request.Context()
		cur, err := repo.Get(ctx, c.Param("id"))
		if err != nil {
			respondStoreError(c, app, err, "object")
			return
		}
		next := *cur
		if err := c.ShouldBindJSON(&next); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		next.ID = cur.ID
		next.Normalize()
		if err := next.Validate(); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		updated, err := repo.Update(ctx, next)
		if err != nil {
			respondStoreError(c, app, err, "object")
			return
		}
		app.Audit.Record(ctx, actorOf(c), ActionUpdatedProperty, propertyDetail(updated), OriginAddress(c.Request))
		c.JSON(http.StatusOK, updated)
	})

	api.DELETE("/properties/:id", func(c *gin.Context) {
		ctx := c.Request.Context()
		cur, err := repo.Get(ctx, c.Param("id"))
		if err != nil {
			respondStoreError(c, app, err, "object")
			return
		}
		if err := repo.Delete(ctx, cur.ID); err != nil {
			respondStoreError(c, app, err, "object")
			return
		}
		app.Audit.Record(ctx, actorOf(c), ActionDeletedProperty, propertyDetail(cur), OriginAddress(c.Request))
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}

func registerClientRoutes(api *gin.RouterGroup, app *App) {
	repo := app.Stores.Clients

	api.GET("/clients", func(c *gin.Context) {
		items, err := repo.List(c.Request.Context())
		if err != nil {
			respondStoreError(c, app, err, "clients")
			return
		}
		c.JSON(http.StatusOK, items)
	})

	api.GET("/clients/:id", func(c *gin.Context) {
		cl, err := repo.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondStoreError(c, app, err, "client")
			return
		}
		c.JSON(http.StatusOK, cl)
	})

	api.GET("/clients/:id/objects", func(c *gin.Context) {
		ctx := c.Request.Context()
		cl, err := repo.Get(ctx, c.Param("id"))
		if err != nil {
			respondStoreError(c, app, err, "client")
			return
		}
		items, err := app.Stores.Properties.ListOwnedBy(ctx, cl.ID, cl.Name)
		if err != nil {
			respondStoreError(c, app, err, "objects")
			return
		}
		c.JSON(http.StatusOK, items)
	})

	api.POST("/clients", func(c *gin.Context) {
		var cl Client
		if err := c.ShouldBindJSON(&cl); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		cl.ID = NewRecordID()
		cl.Normalize()
		if err := cl.Validate(); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		ctx := c.Request.Context()
		created, err := repo.Create(ctx, cl)
		if err != nil {
			respondStoreError(c, app, err, "client")
			return
		}
		app.Audit.Record(ctx, actorOf(c), ActionCreatedClient, clientDetail(created), OriginAddress(c.Request))
		c.JSON(http.StatusCreated, created)
	})

	api.PUT("/clients/:id", func(c *gin.Context) {
		ctx := c.Request.Context()
		cur, err := repo.Get(ctx, c.Param("id"))
		if err != nil {
			respondStoreError(c, app, err, "client")
			return
		}
		next := *cur
		if err := c.ShouldBindJSON(&next); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		next.ID = cur.ID
		next.Normalize()
		if err := next.Validate(); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		updated, err := repo.Update(ctx, next)
		if err != nil {
			respondStoreError(c, app, err, "client")
			return
		}
		app.Audit.Record(ctx, actorOf(c), ActionUpdatedClient, clientDetail(updated), OriginAddress(c.Request))
		c.JSON(http.StatusOK, updated)
	})

	api.DELETE("/clients/:id", func(c *gin.Context) {
		ctx := c.Request.Context()
		cur, err := repo.Get(ctx, c.Param("id"))
		if err != nil {
			respondStoreError(c, app, err, "client")
			return
		}
		if err := repo.Delete(ctx, cur.ID); err != nil {
			respondStoreError(c, app, err, "client")
			return
		}
		app.Audit.Record(ctx, actorOf(c), ActionDeletedClient, clientDetail(cur), OriginAddress(c.Request))
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}

func registerShowingRoutes(api *gin.RouterGroup, app *App) {
	repo := app.Stores.Showings
	properties := app.Stores.Properties

	api.GET("/showings", func(c *gin.Context) {
		items, err := repo.ListAll(c.Request.Context())
		if err != nil {
			respondStoreError(c, app, err, "showings")
			return
		}
		c.JSON(http.StatusOK, items)
	})

	api.GET("/properties/:id/showings", func(c *gin.Context) {
		ctx := c.Request.Context()
		if _, err := properties.Get(ctx, c.Param("id")); err != nil {
			respondStoreError(c, app, err, "object")
			return
		}
		items, err := repo.ListByProperty(ctx, c.Param("id"))
		if err != nil {
			respondStoreError(c, app, err, "showings")
			return
		}
		c.JSON(http.StatusOK, items)
	})

	api.POST("/properties/:id/showings", func(c *gin.Context) {
		var s Showing
		if err := c.ShouldBindJSON(&s); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		ctx := c.Request.Context()
		if _, err := properties.Get(ctx, c.Param("id")); err != nil {
			respondStoreError(c, app, err, "object")
			return
		}
		s.ID = NewRecordID()
		s.PropertyID = c.Param("id")
		s.Normalize()
		if err := s.Validate(); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		created, err := repo.Create(ctx, s)
		if err != nil {
			respondStoreError(c, app, err, "showing")
			return
		}
		app.Audit.Record(ctx, actorOf(c), ActionCreatedShowing, showingDetail(created), OriginAddress(c.Request))
		c.JSON(http.StatusCreated, created)
	})

	api.PUT("/properties/:id/showings/:showingId", func(c *gin.Context) {
		ctx := c.Request.Context()
		cur, err := repo.Get(ctx, c.Param("id"), c.Param("showingId"))
		if err != nil {
			respondStoreError(c, app, err, "showing")
			return
		}
		next := *cur
		if err := c.ShouldBindJSON(&next); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		next.ID, next.PropertyID = cur.ID, cur.PropertyID
		next.Normalize()
		if err := next.Validate(); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		updated, err := repo.Update(ctx, next)
		if err != nil {
			respondStoreError(c, app, err, "showing")
			return
		}
		app.Audit.Record(ctx, actorOf(c), ActionUpdatedShowing, showingDetail(updated), OriginAddress(c.Request))
		c.JSON(http.StatusOK, updated)
	})

	api.DELETE("/properties/:id/showings/:showingId", func(c *gin.Context) {
		ctx := c.Request.Context()
		cur, err := repo.Get(ctx, c.Param("id"), c.Param("showingId"))
		if err != nil {
			respondStoreError(c, app, err, "showing")
			return
		}
		if err := repo.Delete(ctx, cur.PropertyID, cur.ID); err != nil {
			respondStoreError(c, app, err, "showing")
			return
		}
		app.Audit.Record(ctx, actorOf(c), ActionDeletedShowing, showingDetail(cur), OriginAddress(c.Request))
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}
