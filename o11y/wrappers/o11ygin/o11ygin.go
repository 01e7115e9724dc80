// Package o11ygin traces and measures requests flowing through a gin router.
package o11ygin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nostrkit/relayd/o11y"
)

const contextCancelledKey = "o11y-context-cancelled-key"

// Middleware wraps every request in a span and emits the handler timing
// metric. queryParams lists the GET params worth recording, any others are
// left off the span.
func Middleware(provider o11y.Provider, serverName string, queryParams map[string]struct{}) gin.HandlerFunc {
	metrics := provider.MetricsProvider()
	return func(c *gin.Context) {
		start := time.Now()

		route := c.FullPath()
		if route == "" {
			route = "not-found"
		}

		ctx := o11y.WithProvider(c.Request.Context(), provider)
		ctx, span := o11y.StartSpan(ctx,
			fmt.Sprintf("http-server %s: %s %s", serverName, c.Request.Method, route))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)

		// capture the path variables the route matched on
		for _, param := range c.Params {
			span.AddRawField("handler.vars."+param.Key, param.Value)
		}
		addQueryParams(span, c, queryParams)

		// Expose the matched route on the response so clients and proxies
		// can aggregate on it.
		c.Header("X-Route", route)

		requestFields(span, c, serverName, route)

		defer func() {
			status := c.Writer.Status()
			if c.GetBool(contextCancelledKey) {
				status = 499
			}
			span.AddRawField("http.status_code", status)
			span.AddRawField("http.response_content_length", c.Writer.Size())

			if metrics != nil {
				_ = metrics.TimeInMilliseconds("handler",
					float64(time.Since(start).Nanoseconds())/1e6,
					[]string{
						"http.server_name:" + serverName,
						"http.method:" + c.Request.Method,
						"http.route:" + route,
						"http.status_code:" + strconv.Itoa(status),
					},
					1,
				)
			}
		}()

		c.Next()
	}
}

func addQueryParams(span o11y.Span, c *gin.Context, queryParams map[string]struct{}) {
	if queryParams == nil {
		return
	}
	for key, value := range c.Request.URL.Query() {
		if _, ok := queryParams[key]; !ok {
			continue
		}
		switch len(value) {
		case 0:
			span.AddRawField("handler.query."+key, nil)
		case 1:
			span.AddRawField("handler.query."+key, value[0])
		default:
			span.AddRawField("handler.query."+key, value)
		}
	}
}

func requestFields(span o11y.Span, c *gin.Context, serverName, route string) {
	span.AddRawField("meta.type", "http_server")
	span.AddRawField("http.server_name", serverName)
	span.AddRawField("http.route", route)
	span.AddRawField("http.client_ip", c.ClientIP())
	span.AddRawField("http.method", c.Request.Method)
	span.AddRawField("http.url", c.Request.URL.String())
	span.AddRawField("http.target", c.Request.URL.Path)
	span.AddRawField("http.host", c.Request.Host)
	span.AddRawField("http.scheme", c.Request.URL.Scheme)
	span.AddRawField("http.user_agent", c.Request.UserAgent())
	span.AddRawField("http.request_content_length", c.Request.ContentLength)
}

// ClientCancelled traps request context cancellation and reports it as a 499,
// as nginx does. A status already written by the handler is honoured.
func ClientCancelled() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		defer func() {
			if errors.Is(ctx.Err(), context.Canceled) {
				c.Set(contextCancelledKey, true)
				return
			}
			// note any errors gin collected whilst handling, for instance
			// during rendering, on the active span
			if len(c.Errors) > 0 {
				o11y.AddField(ctx, "gin_internal_error", c.Errors)
			}
		}()
		c.Next()
	}
}

// Recovery converts a handler panic into a 500 and records it via
// o11y.HandlePanic.
func Recovery() func(c *gin.Context) {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, err interface{}) {
		c.AbortWithStatus(http.StatusInternalServerError)
		ctx := c.Request.Context()
		span := o11y.FromContext(ctx).GetSpan(ctx)

		// Usually one side of a proxied connection going away, which the
		// stdlib signals with a deliberate panic. Not a real panic.
		// https://github.com/golang/go/issues/28239
		if origErr, ok := err.(error); ok && errors.Is(origErr, http.ErrAbortHandler) {
			o11y.AddResultToSpan(span, origErr)
			return
		}

		_ = o11y.HandlePanic(ctx, span, err)
	})
}
