package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/bikepaths/internal/models"
	"golang.org/x/term"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// printer writes command output, styled only when w is a terminal.
type printer struct {
	w      io.Writer
	styled bool
	theme  Theme
}

func newPrinter(w io.Writer) *printer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &printer{w: w, styled: styled, theme: defaultTheme}
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *printer) header(ok bool, s string) {
	if ok {
		fmt.Fprintln(p.w, p.render(p.theme.completedStyle(), "✓ "+s))
		return
	}
	fmt.Fprintln(p.w, p.render(p.theme.errorStyle(), "✗ "+s))
}

func (p *printer) field(label string, value any) {
	fmt.Fprintf(p.w, "  %-20s %v\n", label+":", value)
}

func (p *printer) hint(s string) {
	fmt.Fprintln(p.w, p.render(p.theme.hintStyle(), s))
}

// printSummary renders a run summary.
func (p *printer) printSummary(s models.RunSummary, dryRun bool) {
	switch {
	case s.Error != "":
		p.header(false, "Run failed")
	case dryRun:
		p.header(true, "Dry run completed")
	default:
		p.header(true, "Run completed")
	}
	fmt.Fprintln(p.w)

	p.field("Run", s.RunID)
	p.field("Extraction time", s.ExtractionTime.Format(time.RFC3339))
	p.field("Records fetched", s.RecordsFetched)
	p.field("Records processed", s.RecordsProcessed)
	p.field("Records rejected", s.RecordsRejected)
	if !dryRun {
		p.field("Records inserted", s.RecordsInserted)
		p.field("Records updated", s.RecordsUpdated)
		p.field("Records failed", s.RecordsFailed)
		p.field("GeoJSON saved", s.GeoJSONSaved)
	}
	p.field("Duration", s.Duration.Round(time.Millisecond))

	p.printReasons(s.Batch.RejectionReasons)

	if len(s.Load.Errors) > 0 {
		fmt.Fprintln(p.w, p.render(p.theme.errorStyle(), fmt.Sprintf("\nWrite errors (%d):", len(s.Load.Errors))))
		for _, e := range s.Load.Errors {
			fmt.Fprintf(p.w, "  • %s: %s\n", e.ID, e.Message)
		}
	}
	if s.Error != "" {
		fmt.Fprintln(p.w, p.render(p.theme.errorStyle(), "\nError: "+s.Error))
	}
}

// printReasons lists rejection reasons, most frequent first.
func (p *printer) printReasons(reasons map[string]int) {
	if len(reasons) == 0 {
		return
	}
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if reasons[keys[i]] != reasons[keys[j]] {
			return reasons[keys[i]] > reasons[keys[j]]
		}
		return keys[i] < keys[j]
	})

	fmt.Fprintln(p.w, p.render(p.theme.statusStyle(), "\nRejection reasons:"))
	for _, k := range keys {
		fmt.Fprintf(p.w, "  %-28s %d\n", k, reasons[k])
	}
}

// table prints rows with aligned columns.
func (p *printer) table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	line := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = fmt.Sprintf("%-*s", widths[i], c)
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	fmt.Fprintln(p.w, p.render(p.theme.statusStyle(), line(headers)))
	for _, row := range rows {
		fmt.Fprintln(p.w, line(row))
	}
}
