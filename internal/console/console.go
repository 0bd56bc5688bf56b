// Package console renders batch progress and summaries for the CLI.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"miniappctl/internal/models"

	"golang.org/x/term"
)

const ruleWidth = 50

// migrationChecklist is printed after every chain-warning migration run
var migrationChecklist = []string{
	"Test each migrated miniapp",
	"Verify chain switching works",
	"Run typecheck: pnpm typecheck",
	"Run tests: pnpm test",
}

type glyphs struct {
	ok, warn, fail, info string
}

var (
	unicodeGlyphs = glyphs{ok: "✓", warn: "⚠", fail: "✗", info: "ℹ"}
	asciiGlyphs   = glyphs{ok: "[ok]", warn: "[warn]", fail: "[fail]", info: "[info]"}
)

// Printer writes human-readable progress lines
type Printer struct {
	w io.Writer
	g glyphs
}

// New returns a Printer for w. Unicode glyphs are used only when w is a terminal.
func New(w io.Writer) *Printer {
	return NewWithGlyphs(w, isTerminal(w))
}

// NewWithGlyphs returns a Printer that uses Unicode glyphs when unicode is true
func NewWithGlyphs(w io.Writer, unicode bool) *Printer {
	g := asciiGlyphs
	if unicode {
		g = unicodeGlyphs
	}
	return &Printer{w: w, g: g}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Heading prints a title followed by a blank line
func (p *Printer) Heading(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format+"\n\n", args...)
}

// Item prints one batch result, with any validation problems indented below it
func (p *Printer) Item(res models.ItemResult) {
	fmt.Fprintf(p.w, "  %s %s: %s\n", p.glyph(res.Outcome), res.App, res.Detail)
	for _, problem := range res.Problems {
		fmt.Fprintf(p.w, "      - %s\n", problem)
	}
}

func (p *Printer) glyph(o models.Outcome) string {
	switch o {
	case models.OutcomeUpdated, models.OutcomeCreated, models.OutcomeUnchanged, models.OutcomeValid:
		return p.g.ok
	case models.OutcomeSkipped:
		return p.g.warn
	case models.OutcomeInvalid, models.OutcomeFailed:
		return p.g.fail
	}
	return p.g.info
}

// Summary prints the non-zero tallies of a batch run on one line
func (p *Printer) Summary(s models.Summary) {
	counts := []struct {
		n     int
		label string
	}{
		{s.Updated, "updated"},
		{s.Created, "created"},
		{s.Unchanged, "unchanged"},
		{s.Valid, "valid"},
		{s.Invalid, "invalid"},
		{s.Skipped, "skipped"},
		{s.Failed, "failed"},
	}
	var parts []string
	for _, c := range counts {
		if c.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c.n, c.label))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "0 processed")
	}
	fmt.Fprintf(p.w, "\nSummary: %s\n", strings.Join(parts, ", "))
}

// Rule prints title framed by horizontal rules
func (p *Printer) Rule(title string) {
	line := strings.Repeat("=", ruleWidth)
	fmt.Fprintf(p.w, "%s\n%s\n%s\n", line, title, line)
}

// MigrationReport prints the end-of-run tallies, the progress line and the
// manual checklist for a chain-warning migration over total apps.
func (p *Printer) MigrationReport(s models.Summary, total int) {
	fmt.Fprintln(p.w)
	p.Rule("Migration Complete!")
	fmt.Fprintf(p.w, "%s Successfully migrated: %d\n", p.g.ok, s.Updated)
	fmt.Fprintf(p.w, "%s Skipped (no changes): %d\n", p.g.info, s.Unchanged)
	fmt.Fprintf(p.w, "%s Not found: %d\n", p.g.warn, s.Skipped)
	fmt.Fprintf(p.w, "%s Failed: %d\n", p.g.fail, s.Failed)
	fmt.Fprintf(p.w, "Progress: %d/%d miniapps migrated\n", s.Updated, total)
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, "Next steps:")
	for i, step := range migrationChecklist {
		fmt.Fprintf(p.w, "%d. %s\n", i+1, step)
	}
}

// RegistryReport prints the tallies of a registry sync and each failed upsert
func (p *Printer) RegistryReport(s models.RegistrySyncSummary) {
	fmt.Fprintf(p.w, "\nRegistered %d apps: %d inserted, %d updated, %d failed, %d skipped\n", s.Apps, s.Inserted, s.Updated, s.Failed, s.Skipped)
	for _, res := range s.Errors {
		fmt.Fprintf(p.w, "  %s %s: %s\n", p.g.fail, res.App, res.Detail)
	}
}

// CategoryTable prints registered app counts per category
func (p *Printer) CategoryTable(counts []models.CategoryCount) {
	if len(counts) == 0 {
		fmt.Fprintln(p.w, "No miniapps registered")
		return
	}
	fmt.Fprintf(p.w, "%-15s %-20s %6s\n", "Category", "Name", "Apps")
	fmt.Fprintln(p.w, strings.Repeat("-", 43))
	total := 0
	for _, c := range counts {
		fmt.Fprintf(p.w, "%-15s %-20s %6d\n", c.Category, c.CategoryName, c.Count)
		total += c.Count
	}
	fmt.Fprintln(p.w, strings.Repeat("-", 43))
	fmt.Fprintf(p.w, "%-36s %6d\n", "Total", total)
}
