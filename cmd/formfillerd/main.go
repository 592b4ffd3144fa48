package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloneofkoha/form-filler/internal/audit"
	"github.com/cloneofkoha/form-filler/internal/classify"
	"github.com/cloneofkoha/form-filler/internal/common"
	"github.com/cloneofkoha/form-filler/internal/engine"
	"github.com/cloneofkoha/form-filler/internal/format"
	"github.com/cloneofkoha/form-filler/internal/format/docx"
	"github.com/cloneofkoha/form-filler/internal/format/pdf"
	"github.com/cloneofkoha/form-filler/internal/format/xlsx"
	"github.com/cloneofkoha/form-filler/internal/llm"
	"github.com/cloneofkoha/form-filler/internal/llm/openai"
	"github.com/cloneofkoha/form-filler/internal/masterdata"
	"github.com/cloneofkoha/form-filler/internal/resolve"
	"github.com/cloneofkoha/form-filler/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Master data is required up front; without a snapshot nothing can be filled.
	fetcher := masterdata.NewFetcher(cfg.MasterData.SourceURL, cfg.MasterData.LocalPath, cfg.MasterData.FetchTimeout, logger)
	store, err := masterdata.NewStore(ctx, fetcher, logger)
	if err != nil {
		logger.Error("loading master data", "error", err)
		os.Exit(1)
	}

	var synth llm.Synthesizer
	if cfg.LLM.APIKey != "" {
		synth = openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
	} else {
		logger.Warn("OPENAI_API_KEY not set; model fallback disabled, unmatched fields stay blank")
	}

	resolver := resolve.New(synth, logger,
		resolve.WithCallTimeout(cfg.LLM.Timeout),
		resolve.WithRetry(cfg.LLM.MaxRetries, cfg.LLM.RetryBackoff),
	)
	registry := format.NewRegistry(
		xlsx.New(logger),
		docx.New(logger),
		pdf.New(logger),
	)
	eng := engine.New(registry, classify.Default(), resolver, store, logger)

	auditStore, err := audit.Open(cfg.Audit.DBPath, logger)
	if err != nil {
		logger.Error("opening audit store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := auditStore.Close(); err != nil {
			logger.Warn("closing audit store", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.New(eng, store, auditStore, cfg.Server.MaxFormSize, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("http serving", "addr", cfg.Server.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("listen", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
