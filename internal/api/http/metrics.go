package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsJSON returns the metrics snapshot for dashboards
func (h *Handlers) MetricsJSON(c *gin.Context) {
	if h.opts.Metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "metrics disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"metrics":              h.opts.Metrics.Snapshot(),
		"avg_request_duration": h.opts.Metrics.AverageRequestDuration().String(),
	})
}

// prometheusHandler serves the Prometheus text exposition.
func (h *Handlers) prometheusHandler() gin.HandlerFunc {
	gatherer := h.opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
