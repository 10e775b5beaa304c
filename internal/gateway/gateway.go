// Package gateway exposes the platform registry over HTTP.
package gateway

import (
	"net/http"
	"time"

	"bookgateway/internal/components/assert"
	"bookgateway/internal/components/telemetry"
	"bookgateway/internal/platform"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	report_gateway_search     = "gateway.search"
	report_gateway_detail     = "gateway.detail"
	report_gateway_api_search = "gateway.api-search"
	report_gateway_panic      = "gateway.panic"
)

type Gateway struct {
	registry       *platform.Registry
	requestTimeout time.Duration
	tel            telemetry.API
}

// New creates a gateway serving the adapters of registry. A positive
// requestTimeout bounds every request, retries included.
func New(registry *platform.Registry, requestTimeout time.Duration, tel telemetry.API) *Gateway {
	assert.NotNil(registry, "registry")
	assert.NotNil(tel, "tel")

	return &Gateway{
		registry:       registry,
		requestTimeout: requestTimeout,
		tel:            telemetry.NewScopedAPI("gateway", tel),
	}
}

// Handler builds the router.
func (g *Gateway) Handler() http.Handler {
	r := gin.New()
	r.Use(
		RequestLogger(),
		CORS(),
		Metrics(),
		gin.CustomRecovery(g.recover),
		Timeout(g.requestTimeout),
	)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/health", g.health)
		api.POST("/search", g.apiSearch)
	}

	r.GET("/:platform/s/:keyword", g.search)
	r.GET("/:platform/book/:book_id", g.detail)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return r
}

func (g *Gateway) recover(c *gin.Context, err any) {
	g.tel.ReportBroken(report_gateway_panic, c.Request.Method, c.Request.URL.Path, err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
