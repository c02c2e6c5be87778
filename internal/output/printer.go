// # internal/output/printer.go
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"pyrite/internal/semanal"
)

var (
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	locationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B"))

	codeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	summaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

// Printer renders diagnostics for a terminal.
type Printer struct {
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) PrintDiagnostics(diags []semanal.Diagnostic) {
	for _, d := range diags {
		loc := fmt.Sprintf("%s:%d:%d", d.Loc.File, d.Loc.Line, d.Loc.Column)
		fmt.Fprintf(p.out, "%s %s %s %s\n",
			locationStyle.Render(loc),
			errorStyle.Render("error"),
			d.Message,
			codeStyle.Render("["+string(d.Code)+"]"),
		)
	}
}

func (p *Printer) PrintSummary(modules, diagCount int, elapsed time.Duration) {
	if diagCount == 0 {
		fmt.Fprintln(p.out, successStyle.Render(
			fmt.Sprintf("Success: no issues found in %d modules", modules)))
	} else {
		fmt.Fprintln(p.out, errorStyle.Render(
			fmt.Sprintf("Found %d errors in %d modules", diagCount, modules)))
	}
	fmt.Fprintln(p.out, summaryStyle.Render(
		fmt.Sprintf("checked in %s", elapsed.Round(time.Millisecond))))
}
