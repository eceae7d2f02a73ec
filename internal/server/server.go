// Package server exposes the scheduling engine over HTTP: shift writes with
// detection, conflict resolution, swap negotiation, import reconciliation,
// and the WebSocket event stream.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hferris/dutywatch/internal/broadcast"
	"github.com/hferris/dutywatch/internal/qgenda"
	"github.com/hferris/dutywatch/internal/reconcile"
	"github.com/hferris/dutywatch/internal/resolve"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB          *gorm.DB
	Hub         *broadcast.Hub
	Resolver    *resolve.Service
	Coordinator *reconcile.Coordinator
	Syncer      *qgenda.Syncer // optional; sync endpoint 503s without it
	Port        int
	Out         io.Writer
}

// api carries the handlers' shared dependencies.
type api struct {
	db          *gorm.DB
	hub         *broadcast.Hub
	resolver    *resolve.Service
	coordinator *reconcile.Coordinator
	syncer      *qgenda.Syncer
}

// NewRouter builds the route table without binding a listener, which is
// what tests exercise.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("server: db is required")
	}
	if opts.Resolver == nil {
		opts.Resolver = &resolve.Service{DB: opts.DB, Hub: opts.Hub}
	}
	if opts.Coordinator == nil {
		opts.Coordinator = &reconcile.Coordinator{DB: opts.DB, Hub: opts.Hub}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	a := &api{
		db:          opts.DB,
		hub:         opts.Hub,
		resolver:    opts.Resolver,
		coordinator: opts.Coordinator,
		syncer:      opts.Syncer,
	}
	registerRoutes(router, a)
	return router, nil
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "dutywatch API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
