package core

import (
	"errors"

	"github.com/gin-gonic/gin"
)

var (
	// ErrNotFound is returned by repositories when the row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials is returned when username/password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken covers malformed, forged and expired tokens alike.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrAlreadyExists is returned when a caller-chosen id is already taken.
	ErrAlreadyExists = errors.New("already exists")
)

// invalidLoginMessage is shown for every authentication failure.
const invalidLoginMessage = "invalid username or password"

// respondError sends unified error payload {"error": {"code", "message"}}.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}
