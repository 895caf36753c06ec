// Package http exposes the knowledge base over a gin JSON API.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driving"
	"github.com/ihssane2002/chatbot-entreprise/internal/logger"
)

// DefaultMaxUploadBytes bounds an uploaded PDF when Deps leaves it unset.
const DefaultMaxUploadBytes = 64 << 20

// Deps are the services behind the API. Query, Ingest, Sync and Corpus are required.
type Deps struct {
	Query   driving.QueryService
	Ingest  driving.IngestService
	Sync    driving.SyncEngine
	Corpus  driven.Corpus
	Reports driven.ReportStore

	// VectorIndex is probed by /healthz when set.
	VectorIndex driven.VectorIndex

	MaxUploadBytes int64

	// Warnings are startup warnings reported by /healthz.
	Warnings []string
}

// NewRouter builds the API routes.
func NewRouter(deps Deps) *gin.Engine {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = DefaultMaxUploadBytes
	}

	router := gin.New()
	router.Use(requestLogger(), gin.Recovery())

	h := &handler{deps: deps, startedAt: time.Now()}
	router.GET("/healthz", h.health)
	router.GET("/static/rapports/:name", h.report)

	api := router.Group("/api")
	api.POST("/query", h.query)
	api.POST("/upload-pdf", h.upload)
	api.GET("/reports", h.listReports)
	api.GET("/sync/status", h.syncStatus)

	return router
}

// requestLogger logs one debug line per request through the application logger.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Serve runs the router on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, router http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
