package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/pilgrims/utilup/internal/upgrade"
)

// isTerminal reports whether w is an interactive terminal.
var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// progressPrinter renders upgrade progress. On a terminal it rewrites one
// line in place; otherwise it prints a line per phase.
type progressPrinter struct {
	w         io.Writer
	tty       bool
	lastPhase upgrade.Phase
	lastLine  string
}

func newProgressPrinter(w io.Writer, tty bool) *progressPrinter {
	return &progressPrinter{w: w, tty: tty}
}

// Render draws one progress value.
func (p *progressPrinter) Render(pr upgrade.UpgradeProgress) {
	if pr.Phase.Terminal() {
		// the result line reports the outcome
		return
	}
	line := fmt.Sprintf("[%3.0f%%] %s", pr.Percentage, pr.CurrentOperation)

	if !p.tty {
		if pr.Phase == p.lastPhase {
			return
		}
		p.lastPhase = pr.Phase
		_, _ = fmt.Fprintln(p.w, line)
		return
	}

	if line == p.lastLine {
		return
	}
	pad := ""
	if n := len(p.lastLine) - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	_, _ = fmt.Fprintf(p.w, "\r%s%s", color.CyanString("%s", line), pad)
	p.lastLine = line
	p.lastPhase = pr.Phase
}

// Done ends an in-place line so later output starts on a fresh one.
func (p *progressPrinter) Done() {
	if p.tty && p.lastLine != "" {
		_, _ = fmt.Fprintln(p.w)
		p.lastLine = ""
	}
}
