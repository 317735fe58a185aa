package controller

import (
	"time"

	"examgrader/internal/common/http/middleware"
	"examgrader/internal/grader/auth"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Verifier     *auth.Verifier
	AuthDisabled bool
	// Gatherer backs /metrics when set.
	Gatherer prometheus.Gatherer
	// HealthChecks are run by /healthz, keyed by dependency name.
	HealthChecks  map[string]HealthCheck
	HealthTimeout time.Duration
}

// NewRouter builds the gin engine with all grader routes.
func NewRouter(h *GraderController, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.TraceContext(), middleware.AccessLog())

	r.GET("/healthz", healthHandler(cfg.HealthChecks, cfg.HealthTimeout))
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	authenticated := auth.Middleware(cfg.Verifier, cfg.AuthDisabled, false)
	staffOnly := auth.Middleware(cfg.Verifier, cfg.AuthDisabled, true)

	api := r.Group("/api/v1/grader")
	api.POST("/execute", authenticated, h.Execute)
	api.POST("/submissions/:id/grade", staffOnly, h.Grade)
	api.GET("/submissions/:id", staffOnly, h.GetStatus)
	api.GET("/submissions/:id/outcomes", staffOnly, h.GetOutcomes)
	return r
}
