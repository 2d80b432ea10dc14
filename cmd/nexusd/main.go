// Command nexusd runs the Nexus hub: webhook capture, the live dashboard,
// and the relay API behind a single HTTP listener.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	nexus "github.com/nexushub/nexus"
	"github.com/nexushub/nexus/api"
	"github.com/nexushub/nexus/store/bunstore"
)

type config struct {
	Addr         string        `env:"NEXUS_ADDR" envDefault:":8000"`
	DatabasePath string        `env:"NEXUS_DB" envDefault:"nexus.db"`
	HostAlias    string        `env:"NEXUS_HOST_ALIAS" envDefault:"host.docker.internal"`
	RelayTimeout time.Duration `env:"NEXUS_RELAY_TIMEOUT" envDefault:"10s"`
	HistoryLimit int           `env:"NEXUS_HISTORY_LIMIT" envDefault:"10"`
	LogLevel     slog.Level    `env:"NEXUS_LOG_LEVEL" envDefault:"info"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("nexusd exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DatabasePath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return err
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())

	st := bunstore.New(db)
	defer st.Close() //nolint:errcheck

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	hub, err := nexus.New(
		nexus.WithStore(st),
		nexus.WithLogger(logger),
		nexus.WithHostAlias(cfg.HostAlias),
		nexus.WithRelayTimeout(cfg.RelayTimeout),
		nexus.WithHistoryLimit(cfg.HistoryLimit),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewHandler(hub, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("nexusd listening", "addr", cfg.Addr, "db", cfg.DatabasePath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
