package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pittmc/backend/internal/monitoring"
)

// HTTPMetrics records request count and latency per route template.
func HTTPMetrics(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
