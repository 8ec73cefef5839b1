package middleware

import (
	"strconv"
	"time"

	"nsimbi-wallet/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records request count, latency and in-flight requests. Routes are
// labelled by their pattern so path parameters do not explode cardinality.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.RequestStarted()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestFinished(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}
