// Command scoutd serves the scout agent over HTTP.
//
// It exposes session CRUD, out-of-band message and confirmation
// submission, and a long-lived SSE stream per session that carries history
// replay and live agent loop events. Tools run sandboxed to the configured
// working directory.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/scout"
	"github.com/nevindra/scout/internal/config"
	"github.com/nevindra/scout/internal/httpapi"
	"github.com/nevindra/scout/observer"
	"github.com/nevindra/scout/provider/openaicompat"
	"github.com/nevindra/scout/store/postgres"
	"github.com/nevindra/scout/store/sqlite"
	"github.com/nevindra/scout/tools/fs"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := config.Load(os.Getenv("SCOUT_CONFIG"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store
	var (
		store scout.SessionStore
		pool  *pgxpool.Pool
	)
	switch cfg.Database.Driver {
	case "postgres":
		var err error
		pool, err = pgxpool.New(ctx, cfg.Database.DSN)
		if err != nil {
			log.Fatalf("postgres pool: %v", err)
		}
		store = postgres.New(pool)
	default:
		store = sqlite.New(cfg.Database.Path, sqlite.WithLogger(logger))
	}
	if err := store.Init(ctx); err != nil {
		log.Fatalf("store init: %v", err)
	}
	defer store.Close()
	if pool != nil {
		defer pool.Close()
	}

	// Observability
	var tracer scout.Tracer
	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		instruments, shutdown, err := observer.Init(ctx)
		if err != nil {
			log.Fatalf("observer init: %v", err)
		}
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(shutCtx); err != nil {
				logger.Error("observer shutdown failed", "error", err)
			}
		}()
		inst = instruments
		tracer = observer.NewTracer(instruments)
	}

	// Tools
	tools := scout.NewRegistry()
	tools.Register(fs.NewReadFile())
	tools.Register(fs.NewListDirectory())
	tools.Register(fs.NewGrepSearch())
	tools.Register(fs.NewGlobSearch())
	tools.Register(fs.NewReadFileExternal())
	if inst != nil {
		tools = observer.WrapRegistry(tools, inst)
	}

	// Provider: one client per submitted message, bound to that message's
	// credential. The HTTP client is shared for connection reuse.
	httpClient := &http.Client{}
	newProvider := func(token string) scout.StreamProvider {
		key := token
		if key == "" {
			key = cfg.Provider.APIKey
		}
		return openaicompat.NewClient(key, cfg.Provider.BaseURL,
			openaicompat.WithHTTPClient(httpClient),
			openaicompat.WithName("github-models"))
	}

	api := httpapi.NewServer(
		store,
		scout.NewStreamRegistry(),
		tools,
		newProvider,
		cfg.Agent.WorkDir,
		cfg.Provider.Model,
		httpapi.WithLogger(logger),
		httpapi.WithTracer(tracer),
		httpapi.WithMaxIterations(cfg.Agent.MaxIterations),
	)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.Handler(),
		// Streams stay open indefinitely; only bound the read side.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "work_dir", cfg.Agent.WorkDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("stopped")
}
