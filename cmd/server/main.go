// Package main runs the ingestion service: HTTP API, MCP endpoint and job workers.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/bull/pdf-ingest/internal/api"
	"github.com/bull/pdf-ingest/internal/app"
	"github.com/bull/pdf-ingest/internal/config"
	mcpserver "github.com/bull/pdf-ingest/internal/mcp"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	configPath := flag.String("config", config.DefaultPath, "path to YAML config file")
	stdio := flag.Bool("stdio", false, "serve MCP over stdin/stdout instead of HTTP")
	flag.Parse()

	if err := run(*configPath, *stdio); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, stdio bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.OpenJobs(ctx); err != nil {
		return err
	}
	if err := a.Queue.Start(ctx, cfg.Jobs.Workers); err != nil {
		return err
	}

	mcp := mcpserver.NewServer(&mcpserver.Config{Queue: a.Queue, Index: a.Index, Logger: logger})

	srv := api.New(api.Config{
		Addr:           cfg.HTTP.Addr,
		WorkDir:        cfg.WorkDir,
		MaxUploadBytes: cfg.Fetch.MaxBytes,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
	}, api.Deps{
		Queue:     a.Queue,
		Index:     a.Index,
		Rebuilder: a.Pipeline,
		Scraper:   a.Fetcher,
	}, logger)
	srv.Mount("/mcp", mcpserver.NewHTTPHandler(mcp, nil))
	srv.Handle("/", mcpserver.NewLandingHandler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if stdio {
		g.Go(func() error {
			logger.Info("Serving MCP over stdio")
			err := mcp.Run(gctx)
			cancel()
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// Workers finish the job in hand before exiting.
	a.Queue.Wait()
	if ferr := a.Flush(context.Background()); ferr != nil {
		logger.Error("Failed to flush index", "error", ferr)
	}
	logger.Info("Server stopped")
	return err
}
