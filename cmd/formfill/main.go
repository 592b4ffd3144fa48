// Command formfill fills one form from the command line:
//
//	formfill -master master_data.md -form blank_form.xlsx [-output filled.xlsx]
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloneofkoha/form-filler/constants"
	"github.com/cloneofkoha/form-filler/internal/classify"
	"github.com/cloneofkoha/form-filler/internal/common"
	"github.com/cloneofkoha/form-filler/internal/document"
	"github.com/cloneofkoha/form-filler/internal/engine"
	"github.com/cloneofkoha/form-filler/internal/format"
	"github.com/cloneofkoha/form-filler/internal/format/docx"
	"github.com/cloneofkoha/form-filler/internal/format/pdf"
	"github.com/cloneofkoha/form-filler/internal/format/xlsx"
	"github.com/cloneofkoha/form-filler/internal/llm"
	"github.com/cloneofkoha/form-filler/internal/llm/openai"
	"github.com/cloneofkoha/form-filler/internal/masterdata"
	"github.com/cloneofkoha/form-filler/internal/resolve"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	masterPath := flag.String("master", "", "path to the master data file")
	formPath := flag.String("form", "", "path to the blank form (xlsx, docx or pdf)")
	outPath := flag.String("output", "", "output path (default: <form>_FILLED.<ext>)")
	flag.Parse()

	if *masterPath == "" || *formPath == "" {
		logger.Error("usage: formfill -master <file> -form <file> [-output <file>]")
		os.Exit(2)
	}

	fmtTag := constants.MapExtToFormat(filepath.Ext(*formPath))
	if fmtTag == "" {
		logger.Error("unsupported form extension", "path", *formPath)
		os.Exit(2)
	}

	masterFile, err := os.Open(*masterPath)
	if err != nil {
		logger.Error("opening master data", "error", err)
		os.Exit(1)
	}
	snap, err := masterdata.Parse(masterFile)
	if cerr := masterFile.Close(); cerr != nil {
		logger.Warn("closing master data", "error", cerr)
	}
	if err != nil {
		logger.Error("parsing master data", "error", err)
		os.Exit(1)
	}

	formData, err := os.ReadFile(*formPath)
	if err != nil {
		logger.Error("reading form", "error", err)
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	var synth llm.Synthesizer
	if cfg.LLM.APIKey != "" {
		synth = openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
	}

	resolver := resolve.New(synth, logger,
		resolve.WithCallTimeout(cfg.LLM.Timeout),
		resolve.WithRetry(cfg.LLM.MaxRetries, cfg.LLM.RetryBackoff),
	)
	registry := format.NewRegistry(xlsx.New(logger), docx.New(logger), pdf.New(logger))
	eng := engine.New(registry, classify.Default(), resolver, masterdata.NewStaticStore(snap), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	filled, report, err := eng.Fill(ctx, document.Document{Data: formData, Format: fmtTag})
	if err != nil {
		logger.Error("fill failed", "error", err)
		os.Exit(1)
	}

	out := *outPath
	if out == "" {
		ext := filepath.Ext(*formPath)
		out = strings.TrimSuffix(*formPath, ext) + "_FILLED" + ext
	}
	if err := os.WriteFile(out, filled.Data, 0o644); err != nil {
		logger.Error("writing output", "error", err)
		os.Exit(1)
	}

	logger.Info("done",
		"output", out,
		"fields_total", report.TargetsTotal,
		"direct", report.Direct,
		"synthesized", report.Synthesized,
		"left_blank", report.LeftBlank,
	)
}
