// Package httpapi exposes the service over HTTP with gin.
package httpapi

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frankii91/sharp-web-resizing-images/adapters/storage"
	"github.com/frankii91/sharp-web-resizing-images/core"
	"github.com/frankii91/sharp-web-resizing-images/hooks"
	"github.com/frankii91/sharp-web-resizing-images/ledger"
	"github.com/frankii91/sharp-web-resizing-images/params"
	"github.com/frankii91/sharp-web-resizing-images/pipeline"
)

// Processor runs validated requests; *imageprocessor.Service satisfies it.
type Processor interface {
	ProcessSingle(ctx context.Context, q params.Raw, out core.ResponseChannel) (*pipeline.Result, error)
	ProcessMulti(ctx context.Context, body params.Raw, out core.ResponseChannel) (*pipeline.Result, error)
}

// Reconciler exposes ledger maintenance; *ledger.Ledger satisfies it.
type Reconciler interface {
	Orphans(ctx context.Context) ([]ledger.ArtifactRecord, error)
	Reconcile(ctx context.Context, del ledger.Deleter) (int, error)
}

// Options configures the router.
type Options struct {
	Service Processor
	Storage *storage.Manager
	Metrics *hooks.InMemoryMetrics // optional
	Ledger  Reconciler             // optional
	Logger  core.Logger
	Debug   bool
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = core.NopLogger{}
	}
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware(opts.Logger))

	h := &handler{opts: opts}
	engine.GET("/status", h.status)
	engine.GET("/one", h.one)
	engine.POST("/multi", h.multi)

	if opts.Metrics != nil {
		engine.GET("/metrics", h.metrics)
	}
	if opts.Storage != nil {
		test := engine.Group("/test/:kind")
		test.GET("/put", h.testPut)
		test.GET("/delete", h.testDelete)
		test.GET("/list", h.testList)
	}
	if opts.Ledger != nil {
		engine.GET("/ledger/orphans", h.orphans)
		engine.POST("/ledger/reconcile", h.reconcile)
	}
	return engine
}

func loggingMiddleware(logger core.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http.request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
