package classify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"VAT / GST Number (if applicable):", "vat gst number"},
		{"  Company Name:  ", "company name"},
		{"E-mail Address", "e mail address"},
		{"SWIFT/BIC", "swift bic"},
		{"Phone [primary]", "phone"},
		{"___", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestClassifyExactSynonym(t *testing.T) {
	c := Default()
	keys := []string{"company_name", "vat_number", "iban"}

	m := c.Classify("Vendor Name", keys)
	assert.Equal(t, "company_name", m.Key)
	assert.Equal(t, float32(1.0), m.Confidence)
	assert.False(t, m.FreeText())

	m = c.Classify("VAT Number:", keys)
	assert.Equal(t, "vat_number", m.Key)
	assert.Equal(t, float32(1.0), m.Confidence)
}

func TestClassifyPartialMatch(t *testing.T) {
	c := Default()
	keys := []string{"company_name", "bank_name"}

	// containment against "company name"
	m := c.Classify("Full Legal Company Name", keys)
	assert.Equal(t, "company_name", m.Key)
	assert.GreaterOrEqual(t, m.Confidence, float32(0.85))
}

func TestClassifyFreeText(t *testing.T) {
	c := Default()
	keys := []string{"company_name", "vat_number", "incoterms", "payment_terms"}

	m := c.Classify("Preferred delivery notes", keys)
	assert.True(t, m.FreeText(), "got key=%q conf=%v", m.Key, m.Confidence)
}

func TestClassifyDeterministic(t *testing.T) {
	c := Default()
	keys := []string{"phone", "email", "address", "city", "country"}

	first := c.Classify("Contact telephone", keys)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify("Contact telephone", keys))
	}
}

func TestClassifyEmptyLabel(t *testing.T) {
	c := Default()
	m := c.Classify("   ", []string{"company_name"})
	assert.True(t, m.FreeText())
	assert.Zero(t, m.Confidence)
}

func TestCanonicalKeyFor(t *testing.T) {
	c := Default()

	assert.Equal(t, "company_name", c.CanonicalKeyFor("Company Name"))
	assert.Equal(t, "vat_number", c.CanonicalKeyFor("VAT Number"))
	assert.Equal(t, "swift_code", c.CanonicalKeyFor("SWIFT Code"))
	// unmatched labels slug so ad-hoc profile fields stay addressable
	assert.Equal(t, "warehouse_dock_hours", c.CanonicalKeyFor("Warehouse Dock Hours"))
	assert.Equal(t, "", c.CanonicalKeyFor("***"))
}

func TestNewFromReaderRejectsEmptyTable(t *testing.T) {
	_, err := NewFromReader(strings.NewReader("rules: []\n"))
	require.Error(t, err)
}

func TestNewFromReaderOverride(t *testing.T) {
	src := `
rules:
  - key: cost_center
    labels:
      - cost center
      - cc code
`
	c, err := NewFromReader(strings.NewReader(src))
	require.NoError(t, err)

	m := c.Classify("Cost Center:", []string{"cost_center"})
	assert.Equal(t, "cost_center", m.Key)
	assert.Equal(t, float32(1.0), m.Confidence)
}
