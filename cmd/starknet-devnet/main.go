// Command starknet-devnet is the main entry point for the Starknet Devnet
// emulator: a local single-node Starknet sequencer for development and
// testing (spec.md §1, §6 "CLI surface").
//
// Usage:
//
//	starknet-devnet [flags]
//
// Flags and their environment-variable equivalents are documented on
// config.Parse and config.ApplyEnvironment.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shard-labs/starknet-devnet/config"
	"github.com/shard-labs/starknet-devnet/executor"
	"github.com/shard-labs/starknet-devnet/log"
	"github.com/shard-labs/starknet-devnet/rpcapi"
	"github.com/shard-labs/starknet-devnet/sequencer"
)

var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code so it can be
// exercised in isolation without calling os.Exit.
func run(args []string) int {
	cfg, exit, code := config.Parse(args)
	if exit {
		if code == 0 {
			fmt.Printf("starknet-devnet %s (commit %s)\n", version, commit)
		}
		return code
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid configuration: %v\n", err)
		return 1
	}

	log.SetDefault(log.New(log.ToSlogLevel(log.LevelFromString(os.Getenv("LOG_LEVEL")))))
	logger := log.Default().Module("main")

	logger.Info("starting starknet-devnet",
		"version", version,
		"host", cfg.Host, "port", cfg.Port,
		"seed", cfg.Seed, "accounts", cfg.Accounts,
		"block_generation_on", cfg.BlockGenerationOn.String(),
		"chain_id", cfg.ChainID,
	)

	seq := sequencer.New(cfg, executor.NewFake())
	defer seq.Shutdown()

	registry := rpcapi.NewDispatchTable(seq)
	server := rpcapi.NewServer(registry, cfg.RestrictiveMode, cfg.RestrictedMethods, log.RequestLoggingEnabled(os.Getenv("RUST_LOG")))
	wsHandler := rpcapi.NewWSHandler(server, seq, 100)

	mux := http.NewServeMux()
	mux.Handle("/", server.Handler())
	mux.Handle("/ws", wsHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server failed", "error", err)
		return 1
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	}

	if cfg.DumpOn == config.DumpOnExit && cfg.DumpPath != "" {
		if _, err := seq.DumpJournal(cfg.DumpPath); err != nil {
			logger.Error("failed to dump journal on exit", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("error during shutdown", "error", err)
		return 1
	}

	logger.Info("shutdown complete")
	return 0
}
