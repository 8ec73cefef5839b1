package handler

import (
	"context"
	"net/http"
	"time"

	"nsimbi-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 3 * time.Second

type dependencyHealth struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck handles GET /health. Every dependency is pinged; one failure
// turns the report degraded and the status 503.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		report := make(map[string]dependencyHealth, len(checkers))
		code, status := http.StatusOK, "healthy"
		for _, checker := range checkers {
			dep := probe(ctx, checker)
			if dep.Error != "" {
				code, status = http.StatusServiceUnavailable, "degraded"
			}
			report[checker.Name()] = dep
		}

		c.JSON(code, gin.H{
			"status":       status,
			"service":      "nsimbi-wallet",
			"dependencies": report,
		})
	}
}

func probe(ctx context.Context, checker ports.HealthChecker) dependencyHealth {
	start := time.Now()
	err := checker.Ping(ctx)
	dep := dependencyHealth{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		dep.Status = "unhealthy"
		dep.Error = err.Error()
	}
	return dep
}
