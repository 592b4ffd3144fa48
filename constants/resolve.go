package constants

// DirectMatchThreshold is the classifier confidence at or above which a field
// is filled straight from master data with no model call.
const DirectMatchThreshold float32 = 0.85

// FreeTextFloor is the confidence below which a label is treated as free text.
const FreeTextFloor float32 = 0.30

// MaxSynthesizedValueLen caps the length of a model-synthesized value; longer
// answers are treated as abstentions.
const MaxSynthesizedValueLen = 512

// Source describes how a ResolvedValue was produced.
type Source string

const (
	SourceDirectMatch      Source = "direct_match"
	SourceModelSynthesized Source = "model_synthesized"
	SourceLeftBlank        Source = "left_blank"
)
