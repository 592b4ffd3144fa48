// Package resolve turns a classified fill target into a value. Direct master
// data matches are preferred for auditability and determinism; the model
// fallback is scoped to ambiguous labels and always constrained to the known
// data. When nothing supports a value, the field stays blank.
package resolve

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cloneofkoha/form-filler/constants"
	"github.com/cloneofkoha/form-filler/internal/classify"
	"github.com/cloneofkoha/form-filler/internal/common"
	"github.com/cloneofkoha/form-filler/internal/document"
	"github.com/cloneofkoha/form-filler/internal/llm"
	"github.com/cloneofkoha/form-filler/internal/masterdata"
)

type Resolver struct {
	synth       llm.Synthesizer // nil disables the fallback
	threshold   float32
	callTimeout time.Duration
	maxRetries  int
	backoff     time.Duration
	logger      *slog.Logger
	sleep       func(time.Duration)
}

type Option func(*Resolver)

func WithThreshold(t float32) Option {
	return func(r *Resolver) { r.threshold = t }
}

func WithCallTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.callTimeout = d }
}

func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(r *Resolver) {
		r.maxRetries = maxRetries
		r.backoff = backoff
	}
}

// WithSleep replaces the backoff sleeper; tests use this to avoid waiting.
func WithSleep(f func(time.Duration)) Option {
	return func(r *Resolver) { r.sleep = f }
}

func New(synth llm.Synthesizer, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		synth:       synth,
		threshold:   constants.DirectMatchThreshold,
		callTimeout: 45 * time.Second,
		maxRetries:  1,
		backoff:     2 * time.Second,
		logger:      logger,
		sleep:       time.Sleep,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve maps one classified target to a value. Direct match requires both a
// confident classification and a present key; everything else goes through
// the fallback, and any fallback failure degrades to left_blank rather than
// failing the document.
func (r *Resolver) Resolve(ctx context.Context, target document.FillTarget, match classify.Match, snap *masterdata.Snapshot) document.ResolvedValue {
	if match.Confidence >= r.threshold {
		if v, ok := snap.Get(match.Key); ok {
			return document.ResolvedValue{
				TargetID: target.ID,
				Value:    v,
				Source:   constants.SourceDirectMatch,
			}
		}
	}

	if r.synth == nil {
		return leftBlank(target.ID)
	}

	req := llm.SynthesisRequest{
		Label:     target.Label,
		Context:   target.Context,
		Reference: snap.Reference(),
	}
	res, err := r.synthesizeWithRetry(ctx, req)
	if err != nil {
		r.logger.Warn("resolve.fallback_failed",
			"target_id", target.ID,
			"label", target.Label,
			"error", common.WrapError(err, common.ErrModelFallback.Error()),
		)
		return leftBlank(target.ID)
	}
	value, ok := usableValue(res)
	if !ok {
		return leftBlank(target.ID)
	}
	return document.ResolvedValue{
		TargetID: target.ID,
		Value:    value,
		Source:   constants.SourceModelSynthesized,
	}
}

func (r *Resolver) synthesizeWithRetry(ctx context.Context, req llm.SynthesisRequest) (llm.SynthesisResult, error) {
	attempts := 1 + r.maxRetries
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		res, err := r.synth.Synthesize(callCtx, req)
		cancel()
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !common.IsTransient(err) || attempt == attempts {
			break
		}
		r.logger.Warn("resolve.fallback_retry",
			"attempt", attempt,
			"backoff", r.backoff.String(),
			"error", err,
		)
		r.sleep(r.backoff)
	}
	return llm.SynthesisResult{}, lastErr
}

// usableValue applies the no-fabrication guard: abstentions, empty, oversized
// and multi-line answers all come back as unusable.
func usableValue(res llm.SynthesisResult) (string, bool) {
	if res.Abstain {
		return "", false
	}
	v := strings.TrimSpace(res.Value)
	v = strings.Trim(v, `"`)
	if v == "" || strings.EqualFold(v, "abstain") || strings.EqualFold(v, "null") {
		return "", false
	}
	if len(v) > constants.MaxSynthesizedValueLen || strings.ContainsAny(v, "\n\r") {
		return "", false
	}
	return v, true
}

func leftBlank(targetID string) document.ResolvedValue {
	return document.ResolvedValue{
		TargetID: targetID,
		Source:   constants.SourceLeftBlank,
	}
}
