package log

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// GinMiddleware tags every REST request with a request id and a child logger,
// then logs the outcome: 5xx at error, 4xx at warn, everything else at info.
// The authenticated user id is picked up after the handler chain ran.
func GinMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		child, reqID := requestLogger(logger, c.Request, c.ClientIP())

		c.Header(headerRequestID, reqID)
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), child))

		c.Next()

		status := c.Writer.Status()
		var evt *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			evt = child.Error()
		case status >= http.StatusBadRequest:
			evt = child.Warn()
		default:
			evt = child.Info()
		}
		evt = evt.Int(FieldStatus, status).
			Float64(FieldLatency, float64(time.Since(start).Milliseconds()))
		if userID := c.GetString(FieldUserID); userID != "" {
			evt = evt.Str(FieldUserID, userID)
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}
		evt.Msg("request completed")
	}
}
