// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/tally/internal/api"
	"github.com/starford/tally/internal/capability/applink"
	"github.com/starford/tally/internal/capability/speech"
	"github.com/starford/tally/internal/export"
	"github.com/starford/tally/internal/mcpserver"
	"github.com/starford/tally/internal/settings"
	"github.com/starford/tally/internal/snapshot"
	"github.com/starford/tally/internal/sse"
	"github.com/starford/tally/internal/store"
	"github.com/starford/tally/internal/tracker"
	"github.com/starford/tally/internal/watch"
)

// runtime holds the wired components shared by every command.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	db     *store.DB
	snaps  *snapshot.Dir
	ctl    *tracker.Controller
}

func (rt *runtime) close() {
	rt.ctl.Close()
	if err := rt.db.Close(); err != nil {
		rt.logger.Warn("close database", slog.String("error", err.Error()))
	}
}

// snapshotSource returns the snapshot dir as an interface, nil when disabled.
func (rt *runtime) snapshotSource() api.SnapshotSource {
	if rt.snaps == nil {
		return nil
	}
	return rt.snaps
}

// prunedSnapshots trims old export copies after each write.
type prunedSnapshots struct {
	dir    *snapshot.Dir
	keep   int
	logger *slog.Logger
}

func (p prunedSnapshots) Write(name string, content []byte) error {
	if err := p.dir.Write(name, content); err != nil {
		return err
	}
	if p.keep > 0 {
		if n, err := p.dir.Prune(p.keep); err != nil {
			p.logger.Warn("snapshot: prune failed", slog.String("error", err.Error()))
		} else if n > 0 {
			p.logger.Debug("snapshot: pruned", slog.Int("removed", n))
		}
	}
	return nil
}

func newRuntime(ctx context.Context, pub tracker.Publisher, opts ...Option) (*runtime, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("snapshot_dir", cfg.Export.SnapshotDir),
		slog.String("metrics_file", cfg.Watch.MetricsFile),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	coOpts := []export.Option{
		export.WithTimeout(cfg.Export.Timeout),
		export.WithLogger(logger),
	}

	var snaps *snapshot.Dir
	if cfg.Export.SnapshotDir != "" {
		snaps, err = snapshot.NewDir(cfg.Export.SnapshotDir)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init snapshots: %w", err)
		}
		coOpts = append(coOpts, export.WithSnapshots(prunedSnapshots{
			dir: snaps, keep: cfg.Export.SnapshotKeep, logger: logger,
		}))
	}

	co := export.NewCoordinator(db, coOpts...)

	ctlOpts := []tracker.Option{
		tracker.WithLogger(logger),
		tracker.WithNotesDebounce(cfg.Tracker.NotesDebounce),
	}
	if pub != nil {
		ctlOpts = append(ctlOpts, tracker.WithPublisher(pub))
	}
	ctl := tracker.New(db, settings.NewService(db), co, ctlOpts...)

	rt := &runtime{cfg: cfg, logger: logger, db: db, snaps: snaps, ctl: ctl}

	if err := ctl.Resume(ctx); err != nil {
		rt.close()
		return nil, fmt.Errorf("resume tracker: %w", err)
	}

	return rt, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	// SSE broker.
	broker := sse.NewBroker(time.Second)
	defer broker.Close()

	rt, err := newRuntime(ctx, broker, opts...)
	if err != nil {
		return err
	}
	defer rt.close()

	cfg, logger := rt.cfg, rt.logger

	// Dictation relays a client-side recognizer; transcripts reach notes only
	// through an explicit commit.
	remote := speech.NewRemote()
	dictation := speech.NewSession(remote, logger)
	defer dictation.Close()

	routerOpts := []api.RouterOption{api.WithDictation(dictation, remote)}
	if cfg.App.OpenLinks {
		routerOpts = append(routerOpts, api.WithAppLinks(applink.CommandOpener{}))
	}
	apiRouter := api.NewRouter(rt.ctl, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, rt.snapshotSource(), routerOpts...)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := rt.db.PingContext(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		dictation.Run(gCtx)
		return nil
	})

	// Keep the active period rolled over to the current day.
	if cfg.Tracker.RolloverCheck > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.Tracker.RolloverCheck)
			defer ticker.Stop()
			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-ticker.C:
					if err := rt.ctl.Resume(gCtx); err != nil && gCtx.Err() == nil {
						logger.Warn("tracker: rollover check failed", slog.String("error", err.Error()))
					}
				}
			}
		})
	}

	// Apply the metric config file and follow its changes.
	if path := cfg.Watch.MetricsFile; path != "" {
		g.Go(func() error {
			err := watch.Watch(gCtx, path, rt.ctl, watch.Options{
				Logger: logger,
				OnEvent: func(kind string, err error) {
					if err != nil {
						logger.Warn("watch: metrics file "+kind,
							slog.String("path", path), slog.String("error", err.Error()))
						return
					}
					logger.Info("watch: metrics file "+kind, slog.String("path", path))
				},
			})
			if err != nil {
				logger.Error("watch: stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so background loops stop with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(ctx, nil, append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	defer rt.close()

	var snaps mcpserver.SnapshotLister
	if rt.snaps != nil {
		snaps = rt.snaps
	}
	srv := mcpserver.New(rt.ctl, snaps)
	rt.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

// Status returns the current period without starting a server.
func Status(ctx context.Context, opts ...Option) (tracker.State, error) {
	rt, err := newRuntime(ctx, nil, opts...)
	if err != nil {
		return tracker.State{}, err
	}
	defer rt.close()
	return rt.ctl.State(), nil
}

// ClosePeriod exports and archives the active period once.
func ClosePeriod(ctx context.Context, opts ...Option) (*export.Result, error) {
	rt, err := newRuntime(ctx, nil, opts...)
	if err != nil {
		return nil, err
	}
	defer rt.close()
	return rt.ctl.ClosePeriod(ctx)
}
