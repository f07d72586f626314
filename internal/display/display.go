// Package display renders run progress and the end-of-run summary to the
// terminal, mirroring every line into the run log.
package display

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	actionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	summaryStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)
)

// Printer writes styled output to the terminal and plain copies to the log.
type Printer struct {
	out    io.Writer
	logger *slog.Logger
}

// New creates a printer. A nil logger falls back to slog.Default.
func New(out io.Writer, logger *slog.Logger) *Printer {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Printer{out: out, logger: logger}
}

// Banner prints the startup mode line.
func (p *Printer) Banner(offline, dryRun, requests bool) {
	mode := "ONLINE"
	if offline {
		mode = "OFFLINE"
	}
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, headerStyle.Render("=== Jellyfin TMDb Auto Collection Builder ==="))
	fmt.Fprintf(p.out, "Mode: %s | Dry run: %t | Requests: %t\n\n", mode, dryRun, requests)
	p.logger.Info("run started", "mode", mode, "dry_run", dryRun, "requests", requests)
}

// Progress prints a step headline.
func (p *Printer) Progress(msg string) {
	fmt.Fprintln(p.out, progressStyle.Render("» "+msg))
	p.logger.Info(msg)
}

// Action prints a per-collection change line.
func (p *Printer) Action(msg string) {
	fmt.Fprintln(p.out, actionStyle.Render("  "+msg))
	p.logger.Info(msg)
}

// Warn prints a non-fatal problem.
func (p *Printer) Warn(msg string) {
	fmt.Fprintln(p.out, warnStyle.Render("  ! "+msg))
	p.logger.Warn(msg)
}

// Summary prints the end-of-run box.
func (p *Printer) Summary(moviesScanned, collectionsFound, created, updated, missingRequested, skipped int, logPath string) {
	body := fmt.Sprintf(
		"Movies scanned:      %d\nCollections found:   %d\nCreated / updated:   %d / %d\nMissing requested:   %d\nMissing skipped:     %d\nRun log:             %s",
		moviesScanned, collectionsFound, created, updated, missingRequested, skipped, logPath,
	)
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, summaryStyle.Render(body))
	fmt.Fprintln(p.out)

	p.logger.Info("run complete",
		"movies_scanned", moviesScanned,
		"collections_found", collectionsFound,
		"created", created,
		"updated", updated,
		"missing_requested", missingRequested,
		"missing_skipped", skipped,
	)
}
