// Package engine orchestrates one fill request: select adapter by format tag,
// parse, classify and resolve each target in document order, render. The only
// shared state is the read-only master data snapshot, so concurrent requests
// need no locking.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cloneofkoha/form-filler/constants"
	"github.com/cloneofkoha/form-filler/internal/classify"
	"github.com/cloneofkoha/form-filler/internal/common"
	"github.com/cloneofkoha/form-filler/internal/document"
	"github.com/cloneofkoha/form-filler/internal/format"
	"github.com/cloneofkoha/form-filler/internal/masterdata"
	"github.com/cloneofkoha/form-filler/internal/resolve"
)

type Engine struct {
	registry   *format.Registry
	classifier *classify.Classifier
	resolver   *resolve.Resolver
	store      *masterdata.Store
	logger     *slog.Logger
}

// Report summarizes one fill request for logging and the audit store. The
// filled document itself carries no marker of which fields stayed blank.
type Report struct {
	JobID            string
	Format           constants.Format
	TargetsTotal     int
	Direct           int
	Synthesized      int
	LeftBlank        int
	NoFillableFields bool
	Outcomes         []document.ResolvedValue
	Elapsed          time.Duration
}

// Filled is the number of fields that received a value.
func (r *Report) Filled() int {
	return r.Direct + r.Synthesized
}

func New(registry *format.Registry, classifier *classify.Classifier, resolver *resolve.Resolver, store *masterdata.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry:   registry,
		classifier: classifier,
		resolver:   resolver,
		store:      store,
		logger:     logger,
	}
}

// Fill runs the parse → classify → resolve → render pipeline on one document.
// Classification and resolution never abort the request; only structural
// failures (unparseable container) do. A partially filled document is success.
func (e *Engine) Fill(ctx context.Context, doc document.Document) (document.Document, *Report, error) {
	start := time.Now()
	report := &Report{
		JobID:  uuid.New().String(),
		Format: doc.Format,
	}

	adapter, ok := e.registry.For(doc.Format)
	if !ok {
		return document.Document{}, report, common.NewAppError("FILL", "no adapter for format "+string(doc.Format), common.ErrUnsupportedFormat)
	}

	// One snapshot for the whole request; a concurrent reload cannot tear it.
	snap := e.store.Current()
	if snap == nil {
		return document.Document{}, report, common.NewAppError("FILL", "no master data snapshot loaded", common.ErrDataLoad)
	}

	targets, err := adapter.Parse(doc.Data)
	if err != nil {
		e.logger.Error("engine.fill.parse_error", "job_id", report.JobID, "format", doc.Format, "error", err)
		return document.Document{}, report, err
	}
	report.TargetsTotal = len(targets)

	if len(targets) == 0 {
		report.NoFillableFields = true
		report.Elapsed = time.Since(start)
		e.logger.Info("engine.fill.no_fillable_fields", "job_id", report.JobID, "format", doc.Format)
		return doc, report, nil
	}

	keys := snap.Keys()
	fills := make([]format.Fill, 0, len(targets))
	for _, target := range targets {
		if !target.Fillable {
			continue
		}
		match := e.classifier.Classify(target.Label, keys)
		rv := e.resolver.Resolve(ctx, target, match, snap)
		report.Outcomes = append(report.Outcomes, rv)
		switch rv.Source {
		case constants.SourceDirectMatch:
			report.Direct++
		case constants.SourceModelSynthesized:
			report.Synthesized++
		default:
			report.LeftBlank++
		}
		if rv.Value != "" {
			fills = append(fills, format.Fill{Target: target, Value: rv.Value})
		}
	}

	rendered, err := adapter.Render(doc.Data, fills)
	if err != nil {
		e.logger.Error("engine.fill.render_error", "job_id", report.JobID, "format", doc.Format, "error", err)
		return document.Document{}, report, err
	}

	report.Elapsed = time.Since(start)
	e.logger.Info("engine.fill.ok",
		"job_id", report.JobID,
		"format", doc.Format,
		"targets", report.TargetsTotal,
		"direct", report.Direct,
		"synthesized", report.Synthesized,
		"left_blank", report.LeftBlank,
		"elapsed_ms", report.Elapsed.Milliseconds(),
	)
	return document.Document{Data: rendered, Format: doc.Format}, report, nil
}
