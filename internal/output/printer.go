package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	json "github.com/json-iterator/go"

	"github.com/tavgar/endpointfinder/internal/scan"
)

// Output formats
const (
	FormatJSON   = "json"
	FormatPretty = "pretty"
	FormatPlain  = "plain"
)

var (
	patternStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	literalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Bold(true)
	valueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	unknownStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB800"))
	locationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Italic(true)
)

// Printer handles output rendering
type Printer struct {
	format     string
	banner     bool
	showSource bool
	version    string
}

// NewPrinter creates a printer for one of the output formats.
func NewPrinter(format string, banner bool, showSource bool, version string) (*Printer, error) {
	switch format {
	case FormatJSON, FormatPretty, FormatPlain:
	case "":
		format = FormatPretty
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	return &Printer{format: format, banner: banner, showSource: showSource, version: version}, nil
}

type outMatch struct {
	Source  string          `json:"source,omitempty"`
	Pattern string          `json:"pattern"`
	Value   string          `json:"value"`
	Line    int             `json:"line"`
	Column  int             `json:"column"`
	Unknown []scan.Position `json:"unknown,omitempty"`
}

func (p *Printer) out(m scan.Match) outMatch {
	om := outMatch{Pattern: m.Pattern, Value: m.Value, Line: m.Line, Column: m.Column, Unknown: m.Unknown}
	if p.showSource {
		om.Source = m.Source
	}
	return om
}

// Print writes matches to w. JSON output is a single array.
func (p *Printer) Print(w io.Writer, matches []scan.Match) error {
	if p.banner && p.format == FormatPretty {
		fmt.Fprintln(w, Banner(p.version))
	}

	if p.format == FormatJSON {
		out := make([]outMatch, 0, len(matches))
		for _, m := range matches {
			out = append(out, p.out(m))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	bw := bufio.NewWriter(w)
	for _, m := range matches {
		if err := p.line(bw, m); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// PrintMatch writes one match as soon as it is found. JSON output is one
// object per line.
func (p *Printer) PrintMatch(w io.Writer, m scan.Match) error {
	if p.format == FormatJSON {
		return json.NewEncoder(w).Encode(p.out(m))
	}
	return p.line(w, m)
}

func (p *Printer) line(w io.Writer, m scan.Match) error {
	if p.format == FormatPlain {
		_, err := fmt.Fprintln(w, m.Value)
		return err
	}

	style := patternStyle
	if m.Pattern == scan.LiteralPattern {
		style = literalStyle
	}
	var b strings.Builder
	b.WriteString(style.Render("[" + m.Pattern + "]"))
	b.WriteByte(' ')
	b.WriteString(highlight(m.Value))
	loc := strconv.Itoa(m.Line) + ":" + strconv.Itoa(m.Column)
	if p.showSource {
		loc = m.Source + ":" + loc
	}
	b.WriteByte(' ')
	b.WriteString(locationStyle.Render("(" + loc + ")"))
	_, err := fmt.Fprintln(w, b.String())
	return err
}

// highlight renders the placeholders of v apart from the resolved text.
func highlight(v string) string {
	const placeholder = "@{VAR}"
	parts := strings.Split(v, placeholder)
	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			b.WriteString(unknownStyle.Render(placeholder))
		}
		if part != "" {
			b.WriteString(valueStyle.Render(part))
		}
	}
	return b.String()
}
