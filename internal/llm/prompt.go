package llm

import (
	"strings"
	"unicode/utf8"
)

const (
	maxReferenceChars = 6000
	maxContextChars   = 500
)

// BuildSystemPrompt composes the strict instruction set: answer only from the
// supplied reference data, abstain otherwise, and return nothing but JSON.
func BuildSystemPrompt() string {
	parts := []string{
		"You fill in one field of a vendor registration form. Return ONLY JSON that matches the provided JSON Schema.",
		"You are given the field label, its surrounding text, and the company's reference data as the sole source of truth.",
		"If the reference data contains the value this field asks for, return it verbatim in 'value' with 'abstain' false.",
		"Match intelligently: 'Vendor Name' means the company name, 'Tax ID' may mean the VAT or GST number.",
		"If the reference data does not contain the answer, set 'abstain' to true and omit 'value'. Never invent, guess, or combine facts that are not present.",
		"The value must be a single short string with no explanation and no line breaks.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the field and the reference data, with size caps so
// the request stays inside the model's input limits.
func BuildUserPrompt(req SynthesisRequest) string {
	var b strings.Builder
	b.WriteString("Field label: ")
	b.WriteString(strings.TrimSpace(req.Label))
	b.WriteString("\n")
	if ctx := strings.TrimSpace(req.Context); ctx != "" {
		b.WriteString("Surrounding text: ")
		b.WriteString(truncate(ctx, maxContextChars))
		b.WriteString("\n")
	}
	b.WriteString("\nReference data:\n")
	b.WriteString(truncate(strings.TrimSpace(req.Reference), maxReferenceChars))
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// back off to a rune boundary so the cut never produces invalid UTF-8
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "\n…(truncated)"
}
