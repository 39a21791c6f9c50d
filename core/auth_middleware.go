package core

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	identityKey   = "identity"
	authResultKey = "auth_result"
)

// RequireAuth runs the auth gate and stores the identity for downstream handlers.
// Rejected requests get 401 and both session cookies are cleared.
func RequireAuth(gate *AuthGate, cfg Config, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := gate.Authenticate(c.Request.Context(), c.Request)
		if err != nil {
			log.WithError(err).Error("auth gate storage failure")
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal error")
			c.Abort()
			return
		}
		if !res.Authenticated {
			if res.Reason != ReasonMissing || res.Token != "" {
				clearSessionCookies(c, cfg)
			}
			c.Set(authResultKey, res)
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			c.Abort()
			return
		}
		c.Set(authResultKey, res)
		c.Set(identityKey, res.Identity)
		c.Next()
	}
}

// AdminOnly ensures the authenticated identity has the admin role.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := currentIdentity(c)
		if !ok || !id.IsAdmin() {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "admin role required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentIdentity(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

func currentAuth(c *gin.Context) (AuthResult, bool) {
	v, ok := c.Get(authResultKey)
	if !ok {
		return AuthResult{}, false
	}
	res, ok := v.(AuthResult)
	return res, ok
}

// setSessionCookie issues auth_token with the fixed cookie contract.
func setSessionCookie(c *gin.Context, cfg Config, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(DefaultSessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Production(),
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookies expires both the primary and the legacy cookie (Max-Age=0).
func clearSessionCookies(c *gin.Context, cfg Config) {
	for _, name := range []string{SessionCookieName, LegacySessionCookieName} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.Production(),
			SameSite: http.SameSiteLaxMode,
		})
	}
}
