package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadExtraction_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ext.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"company_name": "Acme",
		"deal_amount": 5000,
		"close_date": "2025-03-01",
		"next_steps": ["Send proposal"],
		"raw_extraction": {"deal_source": "referral"}
	}`), 0o600))

	ext, err := readExtraction(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "Acme", ext.CompanyName)
	require.NotNil(t, ext.DealAmount)
	assert.InDelta(t, 5000, *ext.DealAmount, 0.001)
	assert.Equal(t, []string{"Send proposal"}, ext.NextSteps)
	assert.Equal(t, "referral", ext.RawExtraction["deal_source"])
}

func TestReadExtraction_Stdin(t *testing.T) {
	ext, err := readExtraction("-", strings.NewReader(`{"contact_email":"jane@acme.com"}`))
	require.NoError(t, err)
	assert.Equal(t, "jane@acme.com", ext.ContactEmail)
}

func TestReadExtraction_Errors(t *testing.T) {
	_, err := readExtraction(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.ErrorContains(t, err, "open extraction")

	_, err = readExtraction("-", strings.NewReader("not json"))
	assert.ErrorContains(t, err, "decode extraction")
}

func TestSplitFields(t *testing.T) {
	assert.Equal(t, []string{"amount", "closedate", "dealstage"}, splitFields([]string{"amount, closedate", "", "dealstage"}))
	assert.Nil(t, splitFields(nil))
}

func TestPrintJSON_Indented(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"expired": 2}))
	assert.Equal(t, "{\n  \"expired\": 2\n}\n", buf.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "ñandú ...", truncate("ñandú ñandú", 9))
}
