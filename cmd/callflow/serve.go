package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/callflow/internal/cli"
	httpAdapter "github.com/aretw0/callflow/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the flow editing and preview API over HTTP, backed by the configured
store. Use --seed to import flow files on startup.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, logger, cfg, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		if seed, _ := cmd.Flags().GetString("seed"); seed != "" {
			ids, err := cli.Import(cmd.Context(), b.Repo, seed, true)
			if err != nil {
				return err
			}
			logger.Info("Flows seeded", "path", seed, "count", len(ids))
		}

		addr := cfg.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		svc := b.Service(logger)
		srv := &http.Server{
			Addr:              addr,
			Handler:           httpAdapter.NewHandler(svc, httpAdapter.WithLogger(logger)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("Starting callflow server", "addr", srv.Addr, "store", cfg.Store)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("Start shutdown", "signal", sig.String())

			timeout := time.Duration(cfg.ShutdownTimeout)
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Graceful shutdown did not complete", "timeout", timeout, "err", err)
				return srv.Close()
			}
			logger.Info("Callflow server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on (overrides the config file)")
	serveCmd.Flags().String("seed", "", "Import the flow files of this path on startup")
}
