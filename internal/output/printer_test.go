package output

import (
	"bytes"
	"strings"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavgar/endpointfinder/internal/scan"
)

var sample = []scan.Match{
	{Source: "app.js", Pattern: "jquery", Value: "/users/@{VAR}", Line: 2, Column: 1,
		Unknown: []scan.Position{{Start: 9, End: 16, Line: 1, Column: 10}}},
	{Source: "app.js", Pattern: scan.LiteralPattern, Value: "/static/a.png", Line: 3, Column: 9},
}

func TestNewPrinterFormats(t *testing.T) {
	for _, f := range []string{FormatJSON, FormatPretty, FormatPlain, ""} {
		_, err := NewPrinter(f, false, false, "dev")
		assert.NoError(t, err, f)
	}
	_, err := NewPrinter("xml", false, false, "dev")
	assert.Error(t, err)
}

func TestPrintJSON(t *testing.T) {
	p, err := NewPrinter(FormatJSON, true, true, "dev")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, p.Print(&buf, sample))

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "app.js", got[0]["source"])
	assert.Equal(t, "/users/@{VAR}", got[0]["value"])
	assert.Len(t, got[0]["unknown"], 1)
	assert.NotContains(t, got[1], "unknown")

	p, err = NewPrinter(FormatJSON, false, false, "dev")
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, p.Print(&buf, nil))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestPrintPlain(t *testing.T) {
	p, err := NewPrinter(FormatPlain, true, true, "dev")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, p.Print(&buf, sample))
	assert.Equal(t, "/users/@{VAR}\n/static/a.png\n", buf.String())
}

func TestPrintPretty(t *testing.T) {
	p, err := NewPrinter(FormatPretty, false, true, "dev")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, p.Print(&buf, sample))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[jquery]")
	assert.Contains(t, lines[0], "/users/")
	assert.Contains(t, lines[0], "@{VAR}")
	assert.Contains(t, lines[0], "app.js:2:1")
	assert.Contains(t, lines[1], "[literal]")
}

func TestPrintMatchStreamsJSONLines(t *testing.T) {
	p, err := NewPrinter(FormatJSON, false, false, "dev")
	require.NoError(t, err)
	var buf bytes.Buffer
	for _, m := range sample {
		require.NoError(t, p.PrintMatch(&buf, m))
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "source")
}

func TestBanner(t *testing.T) {
	b := Banner("1.2.3")
	assert.Contains(t, b, "version 1.2.3")
	p, err := NewPrinter(FormatPretty, true, false, "1.2.3")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, p.Print(&buf, nil))
	assert.Contains(t, buf.String(), "version 1.2.3")
}
