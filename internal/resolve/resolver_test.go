package resolve

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloneofkoha/form-filler/constants"
	"github.com/cloneofkoha/form-filler/internal/classify"
	"github.com/cloneofkoha/form-filler/internal/document"
	"github.com/cloneofkoha/form-filler/internal/llm"
	"github.com/cloneofkoha/form-filler/internal/masterdata"
)

// scriptedSynth returns its scripted outcomes in order and counts calls.
type scriptedSynth struct {
	results []llm.SynthesisResult
	errs    []error
	calls   int
}

func (s *scriptedSynth) Synthesize(_ context.Context, _ llm.SynthesisRequest) (llm.SynthesisResult, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return llm.SynthesisResult{}, s.errs[i]
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return llm.SynthesisResult{Abstain: true}, nil
}

func testSnapshot(t *testing.T) *masterdata.Snapshot {
	t.Helper()
	snap, err := masterdata.Parse(strings.NewReader(
		"Company Name: Weston Manufacturing Ltd\nVAT Number: GB298745163\n"))
	require.NoError(t, err)
	return snap
}

func target(label string) document.FillTarget {
	return document.FillTarget{ID: "t-1", Label: label, Fillable: true}
}

func noSleep() Option {
	return WithSleep(func(time.Duration) {})
}

func TestResolveDirectMatchSkipsFallback(t *testing.T) {
	synth := &scriptedSynth{}
	r := New(synth, nil, noSleep())

	rv := r.Resolve(context.Background(), target("VAT Number"),
		classify.Match{Key: "vat_number", Confidence: 0.95}, testSnapshot(t))

	assert.Equal(t, constants.SourceDirectMatch, rv.Source)
	assert.Equal(t, "GB298745163", rv.Value)
	assert.Zero(t, synth.calls, "a confident direct match must not invoke the model")
}

func TestResolveLowConfidenceGoesToFallback(t *testing.T) {
	synth := &scriptedSynth{results: []llm.SynthesisResult{{Value: "Weston Manufacturing Ltd", Confidence: 0.8}}}
	r := New(synth, nil, noSleep())

	rv := r.Resolve(context.Background(), target("Name of organisation"),
		classify.Match{Key: "company_name", Confidence: 0.4}, testSnapshot(t))

	assert.Equal(t, constants.SourceModelSynthesized, rv.Source)
	assert.Equal(t, "Weston Manufacturing Ltd", rv.Value)
	assert.Equal(t, 1, synth.calls)
}

func TestResolveConfidentMatchOnMissingKeyFallsBack(t *testing.T) {
	synth := &scriptedSynth{results: []llm.SynthesisResult{{Abstain: true}}}
	r := New(synth, nil, noSleep())

	rv := r.Resolve(context.Background(), target("DUNS Number"),
		classify.Match{Key: "duns_number", Confidence: 1.0}, testSnapshot(t))

	assert.Equal(t, constants.SourceLeftBlank, rv.Source)
	assert.Empty(t, rv.Value)
	assert.Equal(t, 1, synth.calls)
}

func TestResolveNilSynthesizerLeavesBlank(t *testing.T) {
	r := New(nil, nil)

	rv := r.Resolve(context.Background(), target("Preferred delivery notes"),
		classify.Match{Confidence: 0.1}, testSnapshot(t))

	assert.Equal(t, constants.SourceLeftBlank, rv.Source)
	assert.Empty(t, rv.Value)
}

func TestResolveAbstainLeavesBlank(t *testing.T) {
	synth := &scriptedSynth{results: []llm.SynthesisResult{{Abstain: true}}}
	r := New(synth, nil, noSleep())

	rv := r.Resolve(context.Background(), target("Preferred delivery notes"),
		classify.Match{Confidence: 0.1}, testSnapshot(t))

	assert.Equal(t, constants.SourceLeftBlank, rv.Source)
}

func TestResolveTransientErrorRetriesOnce(t *testing.T) {
	synth := &scriptedSynth{
		errs:    []error{&llm.CallError{Err: errors.New("timeout"), Retryable: true}},
		results: []llm.SynthesisResult{{}, {Value: "GB298745163"}},
	}
	var slept []time.Duration
	r := New(synth, nil,
		WithRetry(1, 2*time.Second),
		WithSleep(func(d time.Duration) { slept = append(slept, d) }),
	)

	rv := r.Resolve(context.Background(), target("Tax reference"),
		classify.Match{Confidence: 0.1}, testSnapshot(t))

	assert.Equal(t, constants.SourceModelSynthesized, rv.Source)
	assert.Equal(t, "GB298745163", rv.Value)
	assert.Equal(t, 2, synth.calls)
	require.Len(t, slept, 1)
	assert.Equal(t, 2*time.Second, slept[0])
}

func TestResolveNonTransientErrorDoesNotRetry(t *testing.T) {
	synth := &scriptedSynth{
		errs: []error{&llm.CallError{Err: errors.New("bad request")}},
	}
	r := New(synth, nil, WithRetry(1, 2*time.Second), noSleep())

	rv := r.Resolve(context.Background(), target("Tax reference"),
		classify.Match{Confidence: 0.1}, testSnapshot(t))

	assert.Equal(t, constants.SourceLeftBlank, rv.Source)
	assert.Equal(t, 1, synth.calls, "non-transient failures get no retry")
}

func TestResolveExhaustedRetriesLeaveBlank(t *testing.T) {
	transient := &llm.CallError{Err: errors.New("rate limited"), Retryable: true}
	synth := &scriptedSynth{errs: []error{transient, transient}}
	r := New(synth, nil, WithRetry(1, time.Millisecond), noSleep())

	rv := r.Resolve(context.Background(), target("Tax reference"),
		classify.Match{Confidence: 0.1}, testSnapshot(t))

	assert.Equal(t, constants.SourceLeftBlank, rv.Source)
	assert.Equal(t, 2, synth.calls)
}

func TestUsableValueGuards(t *testing.T) {
	tests := []struct {
		name string
		res  llm.SynthesisResult
		want string
		ok   bool
	}{
		{"plain value", llm.SynthesisResult{Value: "BARCGB22"}, "BARCGB22", true},
		{"quoted value", llm.SynthesisResult{Value: `"BARCGB22"`}, "BARCGB22", true},
		{"abstain flag", llm.SynthesisResult{Value: "BARCGB22", Abstain: true}, "", false},
		{"empty", llm.SynthesisResult{Value: "   "}, "", false},
		{"literal abstain", llm.SynthesisResult{Value: "ABSTAIN"}, "", false},
		{"literal null", llm.SynthesisResult{Value: "null"}, "", false},
		{"multi-line", llm.SynthesisResult{Value: "line one\nline two"}, "", false},
		{"oversized", llm.SynthesisResult{Value: strings.Repeat("x", constants.MaxSynthesizedValueLen+1)}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := usableValue(tt.res)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}
