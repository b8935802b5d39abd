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

	"github.com/daybook-labs/daybook/internal/api"
	"github.com/daybook-labs/daybook/internal/feed"
	"github.com/daybook-labs/daybook/internal/gift"
	"github.com/daybook-labs/daybook/internal/journal"
	"github.com/daybook-labs/daybook/internal/localstore"
	"github.com/daybook-labs/daybook/internal/mcpserver"
	"github.com/daybook-labs/daybook/internal/mention"
	"github.com/daybook-labs/daybook/internal/profile"
	"github.com/daybook-labs/daybook/internal/profilecache"
	"github.com/daybook-labs/daybook/internal/recipient"
	"github.com/daybook-labs/daybook/internal/relays"
	"github.com/daybook-labs/daybook/internal/searchclient"
	"github.com/daybook-labs/daybook/internal/signer"
	"github.com/daybook-labs/daybook/internal/sse"
	"github.com/daybook-labs/daybook/internal/zapscan"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. In MCP mode stdout carries the
	// protocol, so logs go to stderr.
	logOut := os.Stdout
	if app.mcp {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Int("relay_count", len(cfg.Relays.URLs)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Identity.
	sgn, err := signer.NewKeySigner(cfg.Identity.Key)
	if err != nil {
		return fmt.Errorf("init signer: %w", err)
	}
	self := sgn.PublicKey()
	logger.Info("Identity ready", slog.String("pubkey", profile.ShortKey(self)))

	// Relay pool.
	relayClient := relays.NewClient(ctx, cfg.Relays.URLs, logger)

	// Profile search channel. A failed initial dial is not fatal: search
	// requests report unavailability until the endpoint comes back.
	search := searchclient.New(cfg.Search.Endpoints, relayClient, searchclient.WithLogger(logger))
	if err := search.Connect(ctx); err != nil {
		logger.Warn("search channel unavailable", slog.String("error", err.Error()))
	}
	defer search.Close()

	journalSvc := journal.NewService(sgn, relayClient, logger)

	// Profile cache. Also serves degraded name search while the channel is
	// down.
	cache, err := profilecache.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init profile cache: %w", err)
	}
	defer cache.Close()

	if app.mcp {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(self, journalSvc, search, cache).ServeStdio()
	}

	// Local client state.
	store, err := localstore.Open(cfg.Store.BasePath())
	if err != nil {
		return fmt.Errorf("init local store: %w", err)
	}
	recent := localstore.NewRecentLog(store)

	// Recipient selection.
	scanOpts := []zapscan.Option{zapscan.WithLogger(logger)}
	if cfg.Gift.ZapWindow > 0 {
		scanOpts = append(scanOpts, zapscan.WithWindow(cfg.Gift.ZapWindow.Std()))
	}
	scanner := zapscan.New(cfg.Relays.URLs, scanOpts...)
	profiles := recipient.NewCachingProfileSource(cache, relayClient, logger)

	var strategy recipient.Strategy
	switch cfg.Gift.Strategy {
	case StrategyRecentPosters:
		posts := recipient.NewRelayPostSource(relayClient, cfg.Gift.PostWindow.Std())
		strategy = recipient.NewRecentPostersStrategy(posts, profiles, scanner, nil, logger)
	default:
		strategy = recipient.NewZapSendersStrategy(scanner, profiles, logger)
	}
	selector := recipient.NewSelector(strategy, self, recent, logger)

	// Gift payment flow.
	var payers []gift.Payer
	if cfg.Gift.WalletConnect != "" {
		conn, connErr := gift.ParseWalletConnection(cfg.Gift.WalletConnect)
		if connErr != nil {
			return fmt.Errorf("parse wallet connection: %w", connErr)
		}
		payers = append(payers, gift.NewNWCPayer(conn, 0))
	}
	flow := gift.NewFlow(sgn, relayClient, gift.NewInvoiceFetcher(nil), payers, logger)

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)

	// Mention labels come from the cache only; misses fall back to
	// abbreviated keys at the call sites.
	resolver := mention.Resolver(func(pubkey string) *profile.Profile {
		p, getErr := cache.Get(pubkey)
		if getErr != nil {
			return nil
		}
		return p
	})

	// Build API handlers and router.
	h := api.NewHandler(self, journalSvc, search, cache, resolver)
	gh := api.NewGiftHandler(selector, flow, broker)
	apiRouter := api.NewRouter(h, gh, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Community feed streamer.
	streamer := feed.NewStreamer(relayClient, broker, cache, logger)

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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
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

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(runCtx)

	// Stream community posts into the SSE broker.
	g.Go(func() error {
		if runErr := streamer.Run(gCtx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("feed streamer error: %w", runErr)
		}
		return nil
	})

	// Watch the config file for relay list changes.
	if app.configPath != "" {
		g.Go(func() error {
			return watchConfig(gCtx, app.configPath, logger, func(next *Config) {
				relayClient.SetURLs(next.Relays.URLs)
				logger.Info("relay list updated", slog.Int("relay_count", len(next.Relays.URLs)))
			})
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if srvErr := httpServer.ListenAndServe(); srvErr != nil && !errors.Is(srvErr, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", srvErr)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if shutErr := httpServer.Shutdown(shutdownCtx); shutErr != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", shutErr.Error()))
		}

		broker.Close()
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
