// Package testcontext hands tests a context with a real o11y provider in
// it, so anything they run logs spans to stderr instead of silently
// dropping them.
package testcontext

import (
	"context"

	"github.com/nostrkit/relayd/config/o11y"
)

// The provider is built once at package init. Tests all share it, which
// keeps parallel packages from racing to set up beeline's globals.
var ctx = newContext()

// Background returns the shared test context.
func Background() context.Context {
	return ctx
}

func newContext() context.Context {
	o11y.DevInit()
	cx, _, _ := o11y.Setup(context.Background(), o11y.Config{
		Service: "relayd-test",
		Mode:    "test",
		Format:  "text",
	})
	return cx
}
