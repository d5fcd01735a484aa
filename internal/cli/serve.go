package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/akinrinmade/jara-daily/internal/api"
	"github.com/akinrinmade/jara-daily/internal/identity"
	"github.com/akinrinmade/jara-daily/internal/metrics"
	"github.com/akinrinmade/jara-daily/internal/store"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen   string
	Database string

	// ready, when set, receives the bound address once the listener is up.
	ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reward ledger API",
		Long: `Serve the reward ledger over HTTP.

Opens (or creates) the SQLite database, seeds the global Coin pool with
coin_supply on first start, and serves the RPC, profile, leaderboard and
metrics endpoints until interrupted.

Example:
  jara serve --listen :8080 --db ./jara.db
  JARA_JWT_SECRET=s3cret jara serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides listen_address)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (overrides database_path)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		cfg.ListenAddress = opts.Listen
	}
	if opts.Database != "" {
		cfg.DatabasePath = opts.Database
	}

	logger := opts.logger(cmd.ErrOrStderr())

	tokens, err := identity.NewManager(cfg.JWTSecret)
	if err != nil {
		return WrapExitError(ExitCommandError, "jwt_secret is required to serve", err)
	}

	ranks, err := cfg.RankTable()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid rank table", err)
	}

	logger.Info("opening database", "path", cfg.DatabasePath)
	st, err := store.Open(cfg.DatabasePath, store.WithRankTable(ranks))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := st.EnsurePool(ctx, cfg.CoinSupply); err != nil {
		return WrapExitError(ExitCommandError, "failed to seed coin pool", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if pool, err := st.CoinPool(ctx); err == nil {
		m.PoolRemaining(pool.Remaining)
	}

	h := api.NewHandler(st, tokens,
		api.WithLogger(logger),
		api.WithMetrics(m),
		api.WithLeaderboardLimit(cfg.LeaderboardLimit),
		api.WithRewardTable(cfg.Rewards),
	)

	ln, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	srv := &http.Server{
		Handler:           api.NewRouter(h, reg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	addr := ln.Addr().String()
	logger.Info("serving", "addr", addr)
	if opts.ready != nil {
		opts.ready(addr)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	<-errCh
	return nil
}
