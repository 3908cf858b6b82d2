package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsHandler struct{}

// NewHandler exposes the gatherer on /metrics.
func NewHandler(engine *gin.Engine, gatherer prometheus.Gatherer) {
	handler := metricsHandler{}
	engine.GET("/metrics", handler.prometheusHandler(gatherer))
}

func (h metricsHandler) prometheusHandler(gatherer prometheus.Gatherer) gin.HandlerFunc {
	handler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})

	return func(ctx *gin.Context) {
		handler.ServeHTTP(ctx.Writer, ctx.Request)
	}
}
