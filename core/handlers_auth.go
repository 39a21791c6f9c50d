package core

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func registerAuthRoutes(api *gin.RouterGroup, app *App, auth gin.HandlerFunc) {
	cfg := app.Config

	api.POST("/auth/login", func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "username and password are required")
			return
		}

		ctx := c.Request.Context()
		cred, err := app.Credentials.Authenticate(ctx, req.Username, req.Password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				app.Instruments.loginAttempt("invalid")
				respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", invalidLoginMessage)
				return
			}
			app.Instruments.loginAttempt("error")
			app.Log.WithError(err).Error("login lookup failed")
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "login failed")
			return
		}

		token, err := issueSession(c, app, cred.Username)
		if err != nil {
			app.Instruments.loginAttempt("error")
			app.Log.WithError(err).Error("session create failed")
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "login failed")
			return
		}
		app.Instruments.loginAttempt("success")
		app.Audit.Record(ctx, cred.Username, ActionLoggedIn, "", OriginAddress(c.Request))
		setSessionCookie(c, cfg, token)

		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"token":    token,
			"username": cred.Username,
			"name":     cred.FullName,
		})
	})

	api.POST("/auth/logout", func(c *gin.Context) {
		ctx := c.Request.Context()
		token, _ := ExtractToken(c.Request)
		if token != "" {
			if err := app.Sessions.Revoke(ctx, token); err != nil {
				app.Log.WithError(err).Error("session revoke failed")
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "logout failed")
				return
			}
			if claims, err := app.Codec.DecodeAndVerify(token); err == nil {
				app.Audit.Record(ctx, claims.Username, ActionLoggedOut, "", OriginAddress(c.Request))
			}
		}
		clearSessionCookies(c, cfg)
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	api.GET("/auth/verify", func(c *gin.Context) {
		res, err := app.Gate.Authenticate(c.Request.Context(), c.Request)
		if err != nil {
			app.Log.WithError(err).Error("auth gate storage failure")
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal error")
			return
		}
		if !res.Authenticated {
			if res.Token != "" {
				clearSessionCookies(c, cfg)
			}
			c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false, "reason": res.Reason})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"authenticated": true,
			"username":      res.Identity.Username,
			"fullName":      res.Identity.FullName,
			"role":          res.Identity.Role,
		})
	})

	api.GET("/profile", auth, func(c *gin.Context) {
		id, _ := currentIdentity(c)
		cred, err := app.Credentials.FindByUsername(c.Request.Context(), id.Username)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "user not found")
				return
			}
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load profile")
			return
		}
		c.JSON(http.StatusOK, profileJSON(cred))
	})

	api.PUT("/auth/profile", auth, func(c *gin.Context) {
		var req struct {
			NewUsername     *string `json:"newUsername"`
			FullName        *string `json:"fullName"`
			Email           *string `json:"email"`
			CurrentPassword string  `json:"currentPassword"`
			NewPassword     *string `json:"newPassword"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		id, _ := currentIdentity(c)
		ctx := c.Request.Context()

		if req.NewUsername != nil {
			name := strings.TrimSpace(*req.NewUsername)
			if name == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "username must not be empty")
				return
			}
			if name == id.Username {
				req.NewUsername = nil
			} else {
				req.NewUsername = &name
			}
		}
		if req.NewPassword != nil && *req.NewPassword == "" {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "new password must not be empty")
			return
		}
		if req.NewPassword != nil || req.NewUsername != nil {
			if req.CurrentPassword == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "current password is required")
				return
			}
			if !app.Credentials.VerifyPassword(ctx, id.Username, req.CurrentPassword) {
				respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "current password is incorrect")
				return
			}
		}

		cred, err := app.Credentials.UpdateCredential(ctx, id.Username, CredentialUpdate{
			NewUsername: req.NewUsername,
			FullName:    req.FullName,
			Email:       req.Email,
			NewPassword: req.NewPassword,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrPasswordTooLong):
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			case errors.Is(err, ErrUsernameTaken):
				respondError(c, http.StatusConflict, "CONFLICT", "username already exists")
			case errors.Is(err, ErrNotFound):
				respondError(c, http.StatusNotFound, "NOT_FOUND", "user not found")
			default:
				app.Log.WithError(err).Error("profile update failed")
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update profile")
			}
			return
		}

		body := profileJSON(cred)
		if cred.Username != id.Username {
			// Tokens embed the username, so a rename rotates the session.
			if res, ok := currentAuth(c); ok {
				if err := app.Sessions.Revoke(ctx, res.Token); err != nil {
					app.Log.WithError(err).Warn("revoke after rename failed")
				}
			}
			token, err := issueSession(c, app, cred.Username)
			if err != nil {
				app.Log.WithError(err).Error("session create after rename failed")
				clearSessionCookies(c, cfg)
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "profile updated, please log in again")
				return
			}
			setSessionCookie(c, cfg, token)
			body["token"] = token
		}
		app.Audit.Record(ctx, cred.Username, ActionUpdatedProfile, "", OriginAddress(c.Request))
		c.JSON(http.StatusOK, body)
	})
}

// issueSession mints a token and makes it live before anyone can see it.
func issueSession(c *gin.Context, app *App, username string) (string, error) {
	token, err := app.Codec.Issue(username)
	if err != nil {
		return "", err
	}
	if _, err := app.Sessions.Create(c.Request.Context(), username, token); err != nil {
		return "", err
	}
	return token, nil
}

func profileJSON(cred *Credential) gin.H {
	return gin.H{
		"username":  cred.Username,
		"fullName":  cred.FullName,
		"email":     cred.Email,
		"role":      cred.Role,
		"createdAt": cred.CreatedAt,
	}
}
