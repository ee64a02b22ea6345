package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agogsaas/vendorperf/internal/metrics"
	"github.com/agogsaas/vendorperf/internal/middleware"
	"github.com/agogsaas/vendorperf/internal/vendorperf/handler"
	"github.com/agogsaas/vendorperf/internal/vendorperf/notify"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// relayRetry is the pause before resubscribing after the relay fails.
const relayRetry = 5 * time.Second

func serveCmd() *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(true)
			if err != nil {
				return err
			}
			defer a.close()

			a.logger.Info("Starting vendorperf service",
				zap.String("version", Version),
				zap.String("build_time", BuildTime),
			)

			if autoMigrate {
				if err := a.migrate(); err != nil {
					return err
				}
			}
			return a.serve()
		},
	}

	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "Run schema migration before serving")
	return cmd
}

func (a *app) serve() error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if a.rdb != nil && a.cfg.Notify.Enabled {
		go a.runRelay(ctx)
	}

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:     a.router(),
		ReadTimeout: a.cfg.Server.ReadTimeout,
		// SSE connections are long-lived
		WriteTimeout: 0,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server starting", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	a.logger.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Server forced to shutdown", zap.Error(err))
	}

	a.logger.Info("Server exited")
	return nil
}

// runRelay forwards alert events published by any instance into the local hub.
func (a *app) runRelay(ctx context.Context) {
	for {
		err := notify.Relay(ctx, a.rdb, a.cfg.Notify.ChannelPrefix, a.hub, a.logger)
		if ctx.Err() != nil {
			return
		}
		a.logger.Warn("alert relay stopped, retrying", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(relayRetry):
		}
	}
}

func (a *app) router() *gin.Engine {
	if a.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.CORS())
	if a.cfg.Metrics.Enabled {
		router.Use(middleware.Metrics())
	}
	// gzip would buffer the SSE stream
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/alerts/stream"})))

	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/health/ready", a.ready)
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})
	if a.cfg.Metrics.Enabled {
		router.GET(a.cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}

	api := router.Group("/api/v1", middleware.JWTAuth(a.cfg.JWT.Secret))
	handler.NewHandlers(a.services, a.hub, a.logger).Register(api)

	return router
}

// ready reports 503 while the database or Redis is unreachable.
func (a *app) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"database": "ok"}
	healthy := true

	if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["database"] = "unavailable"
		healthy = false
	}
	if a.rdb != nil {
		status["redis"] = "ok"
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			status["redis"] = "unavailable"
			healthy = false
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}
