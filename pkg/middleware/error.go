package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"marketplace-backend/pkg/errutil"
)

// Error renders the last handler error as a JSON body. Domain errors carry
// their own status; anything else is a 500.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		err := c.Errors.Last()
		if err == nil || c.Writer.Written() {
			return
		}

		var v errutil.BaseError
		if errors.As(err.Err, &v) {
			c.JSON(v.Code.HTTPStatus(), v.JSON())
			return
		}

		fields := []zap.Field{
			zap.String("path", c.FullPath()),
			zap.Error(err.Err),
		}
		if span := trace.SpanContextFromContext(c.Request.Context()); span.IsValid() {
			fields = append(fields,
				zap.String("trace_id", span.TraceID().String()),
				zap.String("span_id", span.SpanID().String()),
			)
		}
		zap.L().Error("unhandled request error", fields...)
		c.JSON(http.StatusInternalServerError, errutil.BaseError{
			Code:    errutil.StatusInternal,
			Message: "internal error",
		}.JSON())
	}
}
