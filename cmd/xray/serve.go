package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"xray-pipeline/internal/adapters/primary/http/handlers"
	"xray-pipeline/internal/adapters/primary/http/middleware"
	"xray-pipeline/internal/adapters/secondary/mlbackend"
	"xray-pipeline/internal/core/services"
)

func newServeCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}

			// Cancelled on shutdown so an in-flight run stops between batches.
			baseCtx, cancelRuns := context.WithCancel(context.Background())
			defer cancelRuns()

			store, err := openRunStore(baseCtx, cfg)
			if err != nil {
				return err
			}
			defer store.close()

			// ============================================================================
			// Hexagonal Architecture Wiring
			// ============================================================================

			runSvc := services.NewRunService(store.repo, mlbackend.New(), pipelineOptions(cfg), paramsLoader(cfg))
			h := handlers.New(runSvc)

			router := gin.New()
			router.Use(middleware.RequestID(), middleware.Logging(), gin.Recovery())

			api := router.Group("/api/v1/xray")
			h.RegisterRoutes(api)

			router.GET("/healthz", func(c *gin.Context) {
				if err := store.ping(c.Request.Context()); err != nil {
					c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
					return
				}
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})

			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			srv := &http.Server{
				Addr:        addr,
				Handler:     router,
				BaseContext: func(net.Listener) context.Context { return baseCtx },
			}

			errCh := make(chan error, 1)
			go func() {
				log.Infof("starting server on %s", addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-quit:
			case err := <-errCh:
				return fmt.Errorf("server error: %w", err)
			}
			log.Info("shutting down server...")
			cancelRuns()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("server forced shutdown: %w", err)
			}

			log.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().String("host", "", "listen host")
	cmd.Flags().Int("port", 0, "listen port")
	addPipelineFlags(cmd)
	return cmd
}
