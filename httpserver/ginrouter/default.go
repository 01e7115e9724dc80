// Package ginrouter builds gin engines with the observability middleware
// this repo expects on every HTTP surface.
package ginrouter

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/nostrkit/relayd/o11y"
	"github.com/nostrkit/relayd/o11y/wrappers/o11ygin"
)

// gin's mode is a package global, set it exactly once.
var once sync.Once

// Default returns a quiet release-mode engine wired with the o11y tracing,
// panic recovery and client-cancellation middleware. The o11y provider is
// taken from ctx.
func Default(ctx context.Context, serverName string) *gin.Engine {
	once.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	r := gin.New()
	r.Use(
		o11ygin.Middleware(o11y.FromContext(ctx), serverName, nil),
		o11ygin.Recovery(),
		o11ygin.ClientCancelled(),
	)

	// Keep escaped path segments intact for routing.
	r.UseRawPath = true

	return r
}
