package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/finchsocial/finch/internal/config"
	"github.com/finchsocial/finch/internal/domain"
	"github.com/finchsocial/finch/internal/httpserver"
	"github.com/finchsocial/finch/internal/sqlite"
	"github.com/finchsocial/finch/internal/stream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repo, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer repo.Close()
	logger.Info("store opened", "path", cfg.DatabasePath)

	hub := stream.NewHub(logger)
	svc := domain.NewFeedService(repo, repo, repo, repo, hub, logger)
	server := httpserver.NewServer(cfg, svc, httpserver.StaticTokens(cfg.Tokens), hub, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		hub.Close()
		return server.Shutdown(context.Background())
	})

	logger.Info("server started", "port", cfg.Port)
	return g.Wait()
}
