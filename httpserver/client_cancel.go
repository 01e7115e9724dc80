package httpserver

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
)

// HandleClientCancel is gin middleware that reports requests whose client
// went away as status 499, following nginx's convention.
func HandleClientCancel(c *gin.Context) {
	c.Next()
	if errors.Is(c.Request.Context().Err(), context.Canceled) {
		c.Status(499)
	}
}
