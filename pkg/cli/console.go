package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the console color scheme.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Warn    lipgloss.Color
	Error   lipgloss.Color
}

// DefaultTheme is the bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Warn:    lipgloss.Color("#e3b341"),
	Error:   lipgloss.Color("#f85149"),
}

// Styles holds the styles derived from a Theme for one renderer.
type Styles struct {
	Heading lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Dim     lipgloss.Style
	Warn    lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles creates styles for r. Renderers bound to non-terminals drop
// colors automatically.
func NewStyles(r *lipgloss.Renderer, t Theme) Styles {
	return Styles{
		Heading: r.NewStyle().Bold(true).Foreground(t.Primary),
		Label:   r.NewStyle().Foreground(t.Primary),
		Value:   r.NewStyle().Bold(true),
		Dim:     r.NewStyle().Foreground(t.Dim),
		Warn:    r.NewStyle().Foreground(t.Warn),
		Error:   r.NewStyle().Bold(true).Foreground(t.Error),
	}
}

// Console writes line-oriented, styled status text.
type Console struct {
	Out     io.Writer
	Err     io.Writer
	Styles  Styles
	Verbose bool
}

// NewConsole creates a console writing results to out and diagnostics to
// errOut.
func NewConsole(out, errOut io.Writer) *Console {
	return &Console{
		Out:    out,
		Err:    errOut,
		Styles: NewStyles(lipgloss.NewRenderer(out), DefaultTheme),
	}
}

// Writer returns the result writer, for script print output.
func (c *Console) Writer() io.Writer { return c.Out }

// Heading prints a section title followed by a rule.
func (c *Console) Heading(title string) {
	fmt.Fprintln(c.Out, c.Styles.Heading.Render(title))
	fmt.Fprintln(c.Out, c.Styles.Dim.Render(strings.Repeat("─", lipgloss.Width(title))))
}

// Printf prints one plain line.
func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format+"\n", args...)
}

// Result prints "label = v1, v2, ...".
func (c *Console) Result(label string, values ...any) {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	fmt.Fprintf(c.Out, "%s = %s\n", c.Styles.Label.Render(label), c.Styles.Value.Render(strings.Join(parts, ", ")))
}

// Success prints a line with a check mark.
func (c *Console) Success(format string, args ...any) {
	fmt.Fprintln(c.Out, c.Styles.Label.Render("✓")+" "+fmt.Sprintf(format, args...))
}

// Info prints an informational line.
func (c *Console) Info(format string, args ...any) {
	fmt.Fprintln(c.Out, c.Styles.Dim.Render("ℹ")+" "+fmt.Sprintf(format, args...))
}

// Warn prints a warning to the diagnostic writer.
func (c *Console) Warn(format string, args ...any) {
	fmt.Fprintln(c.Err, c.Styles.Warn.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// Error prints an error to the diagnostic writer.
func (c *Console) Error(format string, args ...any) {
	fmt.Fprintln(c.Err, c.Styles.Error.Render("Error: ")+fmt.Sprintf(format, args...))
}

// Debugf prints to the diagnostic writer when Verbose is set.
func (c *Console) Debugf(format string, args ...any) {
	if c.Verbose {
		fmt.Fprintln(c.Err, c.Styles.Dim.Render("[verbose] "+fmt.Sprintf(format, args...)))
	}
}

// Table prints rows as tab-aligned columns under the header.
func (c *Console) Table(header []string, rows [][]string) {
	w := tabwriter.NewWriter(c.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}

// FormatDuration renders d with a unit suited to its size.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		m := int(d.Minutes())
		return fmt.Sprintf("%dm%.1fs", m, d.Seconds()-float64(m*60))
	}
}
