package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/itish2003/courserag/controller"
)

var (
	servePort  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Ingest the documents directory and serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if cmd.Flags().Changed("port") {
			a.cfg.Port = servePort
		}
		if cmd.Flags().Changed("watch") {
			a.cfg.Docs.Watch = serveWatch
		}
		return runServer(ctx, a)
	},
}

func runServer(ctx context.Context, a *app) error {
	// A missing docs directory is not fatal; the API can still ingest later.
	if report, err := a.ingestion.IngestDirectory(ctx, a.docs.Dir); err != nil {
		a.log.Warn("startup ingestion failed", "dir", a.docs.Dir, "error", err)
	} else {
		a.log.Info("startup ingestion finished", "added", report.Added, "skipped", report.Skipped, "failed", report.Failed, "chunks", report.Chunks)
	}

	if a.cfg.Docs.Watch {
		go func() {
			if err := a.ingestion.WatchDirectory(ctx, a.docs.Dir); err != nil {
				a.log.Warn("directory watcher exited", "error", err)
			}
		}()
	}

	if a.cfg.LogMode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware())
	controller.NewRAGController(a.rag, a.log).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server starting", "addr", "http://localhost:"+a.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "Content-Type", "X-Requested-With"},
		MaxAge:          12 * time.Hour,
	})
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "8080", "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Ingest new documents as they appear in the docs directory")
}
