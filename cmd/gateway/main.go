package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"onchainchess/chain/internal/api"
	"onchainchess/chain/internal/config"
	"onchainchess/chain/internal/infra/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error running gateway: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Optional .env for local development; the environment wins otherwise.
	_ = godotenv.Load()

	cfg, err := config.LoadGateway()
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logging.SetupJSON(level)

	chain, err := api.Dial(cfg.ChainRPC)
	if err != nil {
		return err
	}

	srv := api.NewServer(cfg.Port, chain)

	errCh := make(chan error, 1)
	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown.
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}
		errCh <- nil
	}()

	slog.Info("gateway started", "port", cfg.Port, "chainRpc", cfg.ChainRPC)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			return fmt.Errorf("shutdown srv: %w", serr)
		}
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}
		return nil
	}
}
