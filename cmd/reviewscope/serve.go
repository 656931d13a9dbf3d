package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/spacesedan/reviewscope/internal/api"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	det, err := loadDetector(ctx, cfg)
	if err != nil {
		return err
	}
	info := det.Info()
	slog.Info("[Main] Model loaded",
		slog.String("vectorizer", info.VectorizerKind),
		slog.String("model", info.ModelKind),
		slog.Int("features", info.Features))

	recorders, err := buildRecorders(ctx, cfg.Recording)
	if err != nil {
		return err
	}
	defer func() {
		if err := recorders.Close(); err != nil {
			slog.Warn("[Main] Failed to close recorders", slog.String("error", err.Error()))
		}
	}()

	opts := api.Options{
		MaxBodyBytes: cfg.MaxBodyBytes,
		MaxBatchSize: cfg.MaxBatchSize,
	}
	if recorders.Len() > 0 {
		opts.Recorder = recorders
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           api.New(det, opts).Router(cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("[Main] Listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("[Main] Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("[Main] Server stopped", slog.String("error", err.Error()))
		return err
	}
	slog.Info("[Main] Server stopped")
	return nil
}
