// Package cli provides the command-line interface for the pattern screener.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/Azmorus/GPTScreener/internal/analysis"
)

// ANSI styles for terminal output.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
)

// Output writes command results either as styled text or as indented JSON,
// depending on the --json flag.
type Output struct {
	w     io.Writer
	json  bool
	color bool
}

// NewOutput creates an Output for cmd. Colors are used only when stdout is a
// terminal and JSON mode is off.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		w:     cmd.OutOrStdout(),
		json:  jsonMode,
		color: !jsonMode && stdoutIsTerminal(),
	}
}

func stdoutIsTerminal() bool {
	fi, err := os.Stdout.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// IsJSON reports whether JSON output was requested.
func (o *Output) IsJSON() bool {
	return o.json
}

// JSON writes v as indented JSON.
func (o *Output) JSON(v interface{}) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Printf writes a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.w, format, args...)
}

// Println writes its arguments followed by a newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.w, args...)
}

// Success prints a line in green.
func (o *Output) Success(format string, args ...interface{}) { o.line(ColorGreen, format, args...) }

// Error prints a line in red.
func (o *Output) Error(format string, args ...interface{}) { o.line(ColorRed, format, args...) }

// Warning prints a line in yellow.
func (o *Output) Warning(format string, args ...interface{}) { o.line(ColorYellow, format, args...) }

// Info prints a line in cyan.
func (o *Output) Info(format string, args ...interface{}) { o.line(ColorCyan, format, args...) }

// Bold prints a bold line.
func (o *Output) Bold(format string, args ...interface{}) { o.line(ColorBold, format, args...) }

// Dim prints a dimmed line.
func (o *Output) Dim(format string, args ...interface{}) { o.line(ColorDim, format, args...) }

func (o *Output) line(style, format string, args ...interface{}) {
	fmt.Fprintln(o.w, o.style(style, fmt.Sprintf(format, args...)))
}

// style wraps text in an ANSI style when colors are enabled.
func (o *Output) style(style, text string) string {
	if !o.color {
		return text
	}
	return style + text + ColorReset
}

// Green returns text styled green.
func (o *Output) Green(text string) string { return o.style(ColorGreen, text) }

// Red returns text styled red.
func (o *Output) Red(text string) string { return o.style(ColorRed, text) }

// Yellow returns text styled yellow.
func (o *Output) Yellow(text string) string { return o.style(ColorYellow, text) }

// BoldText returns bold text.
func (o *Output) BoldText(text string) string { return o.style(ColorBold, text) }

// DimText returns dimmed text.
func (o *Output) DimText(text string) string { return o.style(ColorDim, text) }

// OutcomeText colors a detection outcome: green for matches, yellow for a
// series below the observation gate.
func (o *Output) OutcomeText(outcome analysis.Outcome) string {
	text := FormatOutcome(outcome)
	switch outcome {
	case analysis.OutcomePatternsDetected:
		return o.Green(text)
	case analysis.OutcomeInsufficientData:
		return o.Yellow(text)
	default:
		return o.DimText(text)
	}
}

// Table buffers rows and renders them with aligned columns.
type Table struct {
	out     *Output
	headers []string
	rows    [][]string
}

// NewTable creates a table with the given column headers.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{out: output, headers: headers}
}

// AddRow appends a row. Cells beyond the header count are ignored.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render writes the header, a rule and every row.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for _, row := range append([][]string{t.headers}, t.rows...) {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if n := visibleWidth(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}

	t.renderRow(t.headers, widths, ColorBold)

	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("─", w)
	}
	t.out.Println(t.out.style(ColorDim, strings.Join(rule, "──")))

	for _, row := range t.rows {
		t.renderRow(row, widths, "")
	}
}

func (t *Table) renderRow(cells []string, widths []int, style string) {
	parts := make([]string, 0, len(widths))
	for i := 0; i < len(cells) && i < len(widths); i++ {
		cell := cells[i] + strings.Repeat(" ", widths[i]-visibleWidth(cells[i]))
		if style != "" {
			cell = t.out.style(style, cell)
		}
		parts = append(parts, cell)
	}
	t.out.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
}

var ansiPattern = regexp.MustCompile("\033\\[[0-9;]*m")

// visibleWidth is the rune count of s without ANSI escapes.
func visibleWidth(s string) int {
	return utf8.RuneCountInString(ansiPattern.ReplaceAllString(s, ""))
}
