package masterdata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloneofkoha/form-filler/internal/common"
)

const sampleProfile = `# Weston Manufacturing Ltd - Company Profile

**Company Name:** Weston Manufacturing Ltd
- Registration Number: 08442991
- VAT Number: GB298745163
Address: Unit 14, Trafford Park Industrial Estate
City: Manchester
Postal Code: M17 1WA
Country: United Kingdom
Phone: +44 161 496 0000
Email: accounts@westonmfg.co.uk

## Banking
Bank Name: Barclays Bank UK PLC
Account Number: 45677261
Sort Code: 20-03-18
IBAN: GB29BARC20031845677261
SWIFT Code: BARCGB22
`

func TestParseProfile(t *testing.T) {
	snap, err := Parse(strings.NewReader(sampleProfile))
	require.NoError(t, err)

	v, ok := snap.Get("company_name")
	require.True(t, ok)
	assert.Equal(t, "Weston Manufacturing Ltd", v)

	v, ok = snap.Get("vat_number")
	require.True(t, ok)
	assert.Equal(t, "GB298745163", v)

	v, ok = snap.Get("swift_code")
	require.True(t, ok)
	assert.Equal(t, "BARCGB22", v)

	v, ok = snap.Get("iban")
	require.True(t, ok)
	assert.Equal(t, "GB29BARC20031845677261", v)

	// absent fields are absent, not empty
	_, ok = snap.Get("duns_number")
	assert.False(t, ok)
}

func TestParseSkipsHeadingsAndNoise(t *testing.T) {
	snap, err := Parse(strings.NewReader(sampleProfile))
	require.NoError(t, err)

	_, ok := snap.Get("weston_manufacturing_ltd_company_profile")
	assert.False(t, ok, "headings must not become entries")
	_, ok = snap.Get("banking")
	assert.False(t, ok)
}

func TestParseFirstOccurrenceWins(t *testing.T) {
	src := "Company Name: First Ltd\nVendor Name: Second Ltd\n"
	snap, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	v, ok := snap.Get("company_name")
	require.True(t, ok)
	assert.Equal(t, "First Ltd", v)
}

func TestParseUnrecognizableSource(t *testing.T) {
	_, err := Parse(strings.NewReader("just prose\nno field pairs here\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDataLoad)
}

func TestParseIgnoresNonLabelLines(t *testing.T) {
	src := `12345: numeric label
https://example.com/page: url label
Phone: +44 161 496 0000
`
	snap, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
}

func TestSnapshotKeysSorted(t *testing.T) {
	snap, err := Parse(strings.NewReader(sampleProfile))
	require.NoError(t, err)

	keys := snap.Keys()
	require.NotEmpty(t, keys)
	for i := 1; i < len(keys); i++ {
		assert.LessOrEqual(t, keys[i-1], keys[i])
	}
}

func TestSnapshotReference(t *testing.T) {
	snap, err := Parse(strings.NewReader("VAT Number: GB298745163\nCity: Manchester\n"))
	require.NoError(t, err)

	ref := snap.Reference()
	assert.Contains(t, ref, "vat_number: GB298745163\n")
	assert.Contains(t, ref, "city: Manchester\n")
}
