package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/chuckfinca/image-collector/pkg/context"
)

const (
	// HeaderSessionID is the header carrying the client session id
	HeaderSessionID = "X-Session-ID"
)

// Context copies request metadata into the request context. A missing
// session id gets a fresh one so anonymous clients still get an isolated
// version cache.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			sessionID := req.Header.Get(HeaderSessionID)
			if sessionID == "" {
				sessionID = uuid.New().String()
			}

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			ctx = context.SetReferer(ctx, req.Referer())
			ctx = context.SetSessionID(ctx, sessionID)

			c.SetRequest(req.WithContext(ctx))
			c.Response().Header().Set(HeaderSessionID, sessionID)

			return next(c)
		}
	}
}
