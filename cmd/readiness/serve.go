package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/invoice-readiness/internal/cli"
	"github.com/Veraticus/invoice-readiness/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the readiness HTTP API",
		Long: `Serve the readiness API:

  GET  /health        database connectivity and uptime
  POST /upload        multipart file upload (fields: file, country, erp)
  POST /analyze       {"uploadId": "...", "questionnaire": {...}}
  GET  /report/{id}   a saved report
  GET  /reports       recent reports (?limit=N)

Requests are rate limited per server.rate_limit and server.burst.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":3001", "Address to listen on")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	interruptHandler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx = interruptHandler.HandleInterrupts(ctx, "Server", "")

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	engine, err := newAnalyzer(settings, store)
	if err != nil {
		return err
	}

	srv := server.New(store, engine, newParser(settings), server.Options{
		DefaultCountry: settings.Analysis.DefaultCountry,
		DefaultERP:     defaultERP,
		RateLimit:      settings.Server.RateLimit,
		Burst:          settings.Server.Burst,
	})

	slog.Info(cli.FormatTitle("Readiness API"),
		"addr", settings.Server.Addr,
		"database", store.Label(),
		"version", server.APIVersion)

	if err := srv.Run(ctx, settings.Server.Addr); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
