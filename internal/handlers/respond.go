package handlers

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/rihlaapp/rihla-backend/internal/services"
)

// respondError maps a service failure to an HTTP response. Business
// rejections carry their kind and message; anything else is a storage
// failure and returns an opaque 500.
func respondError(c *gin.Context, err error) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		log.Printf("Internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(500, gin.H{"error": "Something went wrong. Please try again."})
		return
	}

	status := 500
	switch svcErr.Kind {
	case services.KindNotFound:
		status = 404
	case services.KindForbidden:
		status = 403
	case services.KindInvalidOperation, services.KindInsufficientFunds:
		status = 400
	case services.KindConflict:
		status = 409
	}

	c.JSON(status, gin.H{
		"error": svcErr.Message,
		"kind":  string(svcErr.Kind),
	})
}

// currentUserID reads the authenticated user id set by the middleware
func currentUserID(c *gin.Context) uint {
	return c.GetUint("userId")
}
