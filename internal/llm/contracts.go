package llm

import "context"

// SynthesisRequest carries everything the model is allowed to see: the field
// label, its surrounding document context, and the master data rendered as
// reference lines. The model must answer from the reference or abstain.
type SynthesisRequest struct {
	Label     string
	Context   string
	Reference string
}

// SynthesisResult is the normalized shape we want back from the model.
type SynthesisResult struct {
	Value      string  `json:"value,omitempty"`
	Abstain    bool    `json:"abstain"`
	Confidence float32 `json:"confidence,omitempty"`
}

// Synthesizer is the narrow capability interface the resolver depends on, so
// the model can be swapped or stubbed without touching resolution logic.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (SynthesisResult, error)
}

// CallError wraps a fallback failure and records whether a single retry is
// worthwhile (timeouts, rate limits).
type CallError struct {
	Err       error
	Retryable bool
}

func (e *CallError) Error() string {
	return "model fallback: " + e.Err.Error()
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func (e *CallError) Transient() bool {
	return e.Retryable
}
