package core

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(app *App, store *sessions.CookieStore) *gin.Engine {
	cfg := app.Config
	r := gin.New()
	r.Use(gin.Recovery())

	// Global middleware: logging -> metrics -> origin/CORS -> session -> CSRF
	r.Use(RequestLogger(app.Log))
	r.Use(app.Instruments.Middleware())
	r.Use(OriginRefererMiddleware(cfg))
	r.Use(SessionMiddleware(cfg, store))
	r.Use(CSRFMiddleware(cfg, store))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(app.Instruments.Handler()))

	r.GET("/reports/:id/view",
		PageGuard(app.Codec, cfg),
		ConfirmPage(app.Gate, cfg, app.Log),
		serveReportPage(app),
	)

	auth := RequireAuth(app.Gate, cfg, app.Log)
	api := r.Group("/api/v1")
	registerAuthRoutes(api, app, auth)

	protected := api.Group("")
	protected.Use(auth)
	registerPropertyRoutes(protected, app)
	registerClientRoutes(protected, app)
	registerShowingRoutes(protected, app)
	registerAuditRoutes(protected, app)
	registerReportRoutes(protected, app)
	registerAdminRoutes(protected, app)

	return r
}

// NewCookieStore builds the gorilla store backing the CSRF session.
func NewCookieStore(cfg Config) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.SessionKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.Production(),
		SameSite: sameSiteFromString(cfg.CookieSameSite),
	}
	return store
}
