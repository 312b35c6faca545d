package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wizlearn/account-service/internal/infra/errtrack"
)

// Sentry binds a per-request hub, recovers panics and reports errors attached to 5xx
// responses. It replaces gin.Recovery and must be installed first.
func Sentry(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		hub := sentry.GetHubFromContext(c.Request.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}
		hub.Scope().SetRequest(c.Request)
		ctx := sentry.SetHubOnContext(c.Request.Context(), hub)
		c.Request = c.Request.WithContext(ctx)

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("route", c.FullPath())
				scope.SetTag("trace_id", GetTraceID(c))
				hub.RecoverWithContext(ctx, rec)
			})
			log.Error("panic recovered",
				zap.String("panic", fmt.Sprint(rec)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("trace_id", GetTraceID(c)),
				zap.ByteString("stack", debug.Stack()),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, newErrorResponse(c, "internal server error"))
		}()

		c.Next()

		if c.Writer.Status() < http.StatusInternalServerError {
			return
		}
		tags := map[string]string{
			"route":    c.FullPath(),
			"trace_id": GetTraceID(c),
		}
		for _, ginErr := range c.Errors {
			errtrack.Capture(ctx, ginErr.Err, tags)
		}
	}
}
