package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "table", input: "table", want: FormatTable},
		{name: "empty defaults to table", input: "", want: FormatTable},
		{name: "json", input: "json", want: FormatJSON},
		{name: "JSON uppercase", input: "JSON", want: FormatJSON},
		{name: "yaml", input: "yaml", want: FormatYAML},
		{name: "yml alias", input: "yml", want: FormatYAML},
		{name: "whitespace trimmed", input: "  table  ", want: FormatTable},
		{name: "invalid format", input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("Namespace", "Entries")
	table.AddRow("static-v1", "12")
	table.AddRow("pages-v1", "3")

	var buf bytes.Buffer
	err := PrintTable(&buf, table)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "NAMESPACE")
	assert.Contains(t, out, "ENTRIES")
	assert.Contains(t, out, "static-v1")
	assert.Contains(t, out, "pages-v1")
}

func TestSimpleTable(t *testing.T) {
	var buf bytes.Buffer
	err := SimpleTable(&buf, [][2]string{
		{"State", "active"},
		{"Version", "3"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "State")
	assert.Contains(t, out, "active")
	assert.Contains(t, out, "Version")
}

func TestPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatJSON, false)

	require.NoError(t, p.Print(map[string]int{"queue_depth": 4}))

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 4, decoded["queue_depth"])
}

func TestPrinterYAML(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatYAML, false)

	require.NoError(t, p.Print(map[string]string{"state": "waiting"}))
	assert.Contains(t, buf.String(), "state: waiting")
}

func TestPrinterTableFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, false)

	require.NoError(t, p.Print(map[string]bool{"offline": true}))
	assert.Contains(t, buf.String(), "\"offline\": true")
}
