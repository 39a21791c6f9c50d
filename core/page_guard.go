package core

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LoginPath is where rejected page requests are sent.
const LoginPath = "/"

// PageGuard is the stateless check in front of HTML pages. It only verifies the token
// signature and age, without touching any store, so it can run before the database is consulted.
func PageGuard(codec TokenVerifier, cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := ExtractToken(c.Request)
		if token == "" {
			redirectToLogin(c, cfg)
			return
		}
		if _, err := codec.DecodeAndVerify(token); err != nil {
			redirectToLogin(c, cfg)
			return
		}
		c.Next()
	}
}

// ConfirmPage runs the full auth gate for page routes; failures redirect instead of returning JSON.
func ConfirmPage(gate *AuthGate, cfg Config, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := gate.Authenticate(c.Request.Context(), c.Request)
		if err != nil {
			log.WithError(err).Error("auth gate storage failure")
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if !res.Authenticated {
			redirectToLogin(c, cfg)
			return
		}
		c.Set(authResultKey, res)
		c.Set(identityKey, res.Identity)
		c.Next()
	}
}

func redirectToLogin(c *gin.Context, cfg Config) {
	clearSessionCookies(c, cfg)
	c.Redirect(http.StatusFound, LoginPath)
	c.Abort()
}
